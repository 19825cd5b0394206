// Package lockfile records the outcome of a resolution so later
// resolutions select the same versions.
//
// A lockfile maps every module of a resolved graph to its selected version
// and the sha256 of the component descriptor it was resolved from:
//
//	{
//	  "lockFileVersion": 1,
//	  "root": "org.example:app:1.0",
//	  "modules": {
//	    "org.example:core": {"version": "1.2", "hash": "sha256:..."}
//	  }
//	}
//
// Output is deterministic: keys are sorted and the file is indented, so
// lockfiles diff cleanly under version control.
//
// # Usage
//
// Lock a resolution and write it:
//
//	lf := lockfile.New()
//	lf.Lock(id, descriptor)
//	if err := lf.WriteFile(lockfile.DefaultPath("component.star")); err != nil {
//	    log.Fatal(err)
//	}
//
// Replay it as forced constraints of the root component:
//
//	deps, err := lf.Constraints()
package lockfile

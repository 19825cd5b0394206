package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// Repository resolves selectors to components and serves their metadata.
type Repository interface {
	engine.IDResolver
	engine.MetadataResolver

	// Versions lists the known versions of a module. Unknown modules
	// return an error matching ErrModuleNotFound.
	Versions(ctx context.Context, module ident.ModuleIdentifier) ([]string, error)

	// Name identifies the repository in errors and logs.
	Name() string
}

// notFoundError matches engine.ErrNotFound so the engine can tell missing
// components from broken repositories.
type notFoundError string

func (e notFoundError) Error() string        { return string(e) }
func (e notFoundError) Is(target error) bool { return target == engine.ErrNotFound }

var (
	// ErrModuleNotFound is returned when no repository knows a module.
	ErrModuleNotFound error = notFoundError("module not found")

	// ErrVersionNotFound is returned when a module exists but no version
	// satisfies the request.
	ErrVersionNotFound error = notFoundError("version not found")
)

// Option configures a repository.
type Option func(*options)

type options struct {
	compare    version.Comparator
	logger     *slog.Logger
	httpClient *http.Client
}

// WithComparator sets the version ordering used to pick the highest
// matching version. Defaults to version.Compare.
func WithComparator(c version.Comparator) Option {
	return func(o *options) { o.compare = c }
}

// WithLogger sets a structured logger. Repositories are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{compare: version.Compare}
	for _, opt := range opts {
		opt(&o)
	}
	if o.compare == nil {
		o.compare = version.Compare
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// resolveID picks the highest listed version accepted by the selector and
// not rejected by it.
func resolveID(ctx context.Context, r Repository, compare version.Comparator, sel engine.ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	versions, err := r.Versions(ctx, sel.Module)
	if err != nil {
		return ident.ModuleVersionIdentifier{}, err
	}
	vs, err := version.ParseSelector(sel.Version)
	if err != nil {
		return ident.ModuleVersionIdentifier{}, err
	}
	rejects := make([]version.Selector, 0, len(sel.Reject))
	for _, s := range sel.Reject {
		rs, err := version.ParseSelector(s)
		if err != nil {
			return ident.ModuleVersionIdentifier{}, fmt.Errorf("reject %q: %w", s, err)
		}
		rejects = append(rejects, rs)
	}
	best := version.Highest(vs, versions, rejects, compare)
	if best == "" {
		return ident.ModuleVersionIdentifier{}, fmt.Errorf("%s: no version matching %s in %s: %w",
			sel.Module, sel.Version, r.Name(), ErrVersionNotFound)
	}
	return sel.Module.Version(best), nil
}

func sortVersions(versions []string, compare version.Comparator) {
	sort.SliceStable(versions, func(i, j int) bool { return compare(versions[i], versions[j]) < 0 })
}

package depgraph

import (
	"errors"

	"github.com/albertocavalcante/go-depgraph/repository"
)

// Sentinel errors for common resolution failures.
var (
	// ErrModuleNotFound indicates the requested module does not exist in any repository.
	ErrModuleNotFound = repository.ErrModuleNotFound

	// ErrVersionNotFound indicates no version of the module matches the request.
	ErrVersionNotFound = repository.ErrVersionNotFound

	// ErrNoRoot indicates that no root component was given.
	ErrNoRoot = errors.New("no root component")

	// ErrNoRepository indicates that no repository was configured.
	ErrNoRepository = errors.New("no repository configured")
)

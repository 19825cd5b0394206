package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// ModuleIndexFileName lists the versions of a module in a remote repository.
const ModuleIndexFileName = "versions.json"

// ModuleIndex is the versions.json document of a module.
type ModuleIndex struct {
	// Versions lists all published versions.
	Versions []string `json:"versions"`
}

// Validate checks that every version is non-empty and listed once.
func (m *ModuleIndex) Validate() error {
	if len(m.Versions) == 0 {
		return errors.New("versions: must not be empty")
	}
	seen := make(map[string]bool, len(m.Versions))
	for i, v := range m.Versions {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("versions[%d]: must not be empty", i)
		}
		if seen[v] {
			return fmt.Errorf("versions[%d]: duplicate version %q", i, v)
		}
		seen[v] = true
	}
	return nil
}

// WithHTTPClient sets the HTTP client of a remote repository.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// Remote serves components from an HTTP server with the same layout as a
// local repository:
//
//	{base}/{group}/{name}/versions.json
//	{base}/{group}/{name}/{version}/component.star
//
// Version lists and descriptors are cached for the lifetime of the
// repository.
type Remote struct {
	baseURL string
	client  *http.Client
	opts    options

	versions sync.Map // map[ident.ModuleIdentifier][]string
	cache    sync.Map // map[ident.ModuleVersionIdentifier]*engine.ComponentMetadata
}

var _ Repository = (*Remote)(nil)

// NewRemote creates a repository for the given base URL.
func NewRemote(baseURL string, opts ...Option) *Remote {
	o := newOptions(opts)
	client := o.httpClient
	if client == nil {
		client = &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        DefaultMaxIdleConns,
				MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
				IdleConnTimeout:     DefaultIdleConnTimeout,
			},
		}
	}
	return &Remote{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		opts:    o,
	}
}

// Name returns the base URL.
func (r *Remote) Name() string { return r.baseURL }

// Versions fetches and validates the module's versions.json, sorted in
// ascending order.
func (r *Remote) Versions(ctx context.Context, module ident.ModuleIdentifier) ([]string, error) {
	if cached, ok := r.versions.Load(module); ok {
		return cached.([]string), nil
	}

	url := fmt.Sprintf("%s/%s/%s/%s", r.baseURL, module.Group, module.Name, ModuleIndexFileName)
	data, err := r.fetch(ctx, url)
	if errors.Is(err, errHTTPNotFound) {
		return nil, fmt.Errorf("%s in %s: %w", module, r.baseURL, ErrModuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch versions of %s: %w", module, err)
	}

	var index ModuleIndex
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to parse versions of %s: %w", module, err)
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("invalid versions of %s: %w", module, err)
	}

	versions := append([]string(nil), index.Versions...)
	sortVersions(versions, r.opts.compare)
	r.versions.Store(module, versions)
	return versions, nil
}

// ResolveID picks the highest listed version accepted by the selector.
func (r *Remote) ResolveID(ctx context.Context, sel engine.ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	return resolveID(ctx, r, r.opts.compare, sel)
}

// ResolveMetadata fetches and parses the component descriptor.
func (r *Remote) ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	if cached, ok := r.cache.Load(id); ok {
		return cached.(*engine.ComponentMetadata), nil
	}

	url := fmt.Sprintf("%s/%s/%s/%s/%s", r.baseURL, id.Module.Group, id.Module.Name, id.Version, DescriptorFileName)
	data, err := r.fetch(ctx, url)
	if errors.Is(err, errHTTPNotFound) {
		return nil, fmt.Errorf("%s in %s: %w", id, r.baseURL, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch descriptor of %s: %w", id, err)
	}

	md, err := ParseDescriptor(url, data)
	if err != nil {
		return nil, err
	}
	if md.ID != id {
		return nil, fmt.Errorf("descriptor %s declares %s, expected %s", url, md.ID, id)
	}
	r.opts.logger.Debug("fetched descriptor", "component", id.String(), "url", url)

	actual, _ := r.cache.LoadOrStore(id, md)
	return actual.(*engine.ComponentMetadata), nil
}

// IsFetchingMetadataCheap reports whether the descriptor is already cached.
func (r *Remote) IsFetchingMetadataCheap(id ident.ModuleVersionIdentifier) bool {
	_, ok := r.cache.Load(id)
	return ok
}

var errHTTPNotFound = errors.New("HTTP 404")

// fetch performs an HTTP GET and returns the response body.
func (r *Remote) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errHTTPNotFound, url)
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

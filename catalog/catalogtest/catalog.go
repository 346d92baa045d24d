// Package catalogtest provides an in-memory catalog.Client for tests.
package catalogtest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"sync"

	"resource-downloader/catalog"
	"resource-downloader/resource"
)

// Catalog is a scriptable catalog.Client.
type Catalog struct {
	mu         sync.Mutex
	projects   map[string]resource.Project
	versions   map[string][]resource.VersionRecord
	blobs      map[string][]byte
	listErr    map[string]error
	fetchErrs  map[string][]error
	gates      map[string]*gate
	fetchCount map[string]int
	listCount  map[string]int
}

type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

var _ catalog.Client = (*Catalog)(nil)

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		projects:   make(map[string]resource.Project),
		versions:   make(map[string][]resource.VersionRecord),
		blobs:      make(map[string][]byte),
		listErr:    make(map[string]error),
		fetchErrs:  make(map[string][]error),
		gates:      make(map[string]*gate),
		fetchCount: make(map[string]int),
		listCount:  make(map[string]int),
	}
}

// AddProject registers a project and its versions. ProjectID is filled in on each version.
func (c *Catalog) AddProject(p resource.Project, versions ...resource.VersionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects[p.ID] = p
	for i := range versions {
		versions[i].ProjectID = p.ID
	}
	c.versions[p.ID] = append(c.versions[p.ID], versions...)
}

// AddBlob serves data at locator.
func (c *Catalog) AddBlob(locator string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[locator] = data
}

// FailList makes ListVersions for projectID yield err.
func (c *Catalog) FailList(projectID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr[projectID] = err
}

// FailFetch queues errors returned by successive FetchBytes calls for locator.
func (c *Catalog) FailFetch(locator string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErrs[locator] = append(c.fetchErrs[locator], errs...)
}

// Block holds FetchBytes for locator until release is called. started is closed when
// the first fetch reaches the gate.
func (c *Catalog) Block(locator string) (started <-chan struct{}, release func()) {
	g := &gate{started: make(chan struct{}), release: make(chan struct{})}
	c.mu.Lock()
	c.gates[locator] = g
	c.mu.Unlock()
	return g.started, func() { close(g.release) }
}

// FetchCount returns how many times locator was fetched.
func (c *Catalog) FetchCount(locator string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCount[locator]
}

// ListCount returns how many times projectID's versions were listed.
func (c *Catalog) ListCount(projectID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCount[projectID]
}

func (c *Catalog) ListVersions(ctx context.Context, projectID string) iter.Seq2[resource.VersionRecord, error] {
	c.mu.Lock()
	c.listCount[projectID]++
	versions := append([]resource.VersionRecord(nil), c.versions[projectID]...)
	listErr := c.listErr[projectID]
	_, known := c.projects[projectID]
	c.mu.Unlock()

	return func(yield func(resource.VersionRecord, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(resource.VersionRecord{}, err)
			return
		}
		if listErr != nil {
			yield(resource.VersionRecord{}, listErr)
			return
		}
		if !known {
			yield(resource.VersionRecord{}, &catalog.TransportError{Op: "list versions", StatusCode: 404, Err: catalog.ErrNotFound})
			return
		}
		for _, v := range versions {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (c *Catalog) GetProject(ctx context.Context, projectID string) (resource.Project, error) {
	if err := ctx.Err(); err != nil {
		return resource.Project{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[projectID]
	if !ok {
		return resource.Project{}, &catalog.TransportError{Op: "get project", StatusCode: 404, Err: catalog.ErrNotFound}
	}
	return p, nil
}

func (c *Catalog) FetchBytes(ctx context.Context, locator string) (io.ReadCloser, error) {
	c.mu.Lock()
	c.fetchCount[locator]++
	g := c.gates[locator]
	var failure error
	if errs := c.fetchErrs[locator]; len(errs) > 0 {
		failure = errs[0]
		c.fetchErrs[locator] = errs[1:]
	}
	data, ok := c.blobs[locator]
	c.mu.Unlock()

	if g != nil {
		g.once.Do(func() { close(g.started) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, &catalog.TransportError{Op: "fetch", StatusCode: 404, Err: fmt.Errorf("%s: %w", locator, catalog.ErrNotFound)}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// HashesOf returns the sha1 and sha512 digests of data, the way the catalog declares them.
func HashesOf(data []byte) map[string]string {
	s1 := sha1.Sum(data)
	s512 := sha512.Sum512(data)
	return map[string]string{
		"sha1":   hex.EncodeToString(s1[:]),
		"sha512": hex.EncodeToString(s512[:]),
	}
}

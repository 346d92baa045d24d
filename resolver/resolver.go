// Package resolver picks the best installable version of a project for a target.
package resolver

import (
	"context"
	"fmt"

	"resource-downloader/catalog"
	"resource-downloader/resource"

	"go.uber.org/zap"
)

// Request describes one resolution.
type Request struct {
	ProjectID string
	Kind      resource.Kind
	Target    resource.Target
	// Channel is the least stable channel ranked equal to release.
	Channel resource.Channel
	// Installed is the currently installed version, if any.
	Installed *resource.VersionRecord
	// Constraints further narrow the candidates (pins, dependency ranges). A version
	// must satisfy all of them.
	Constraints []resource.Constraint
}

func (req Request) allows(v resource.VersionRecord) bool {
	for _, c := range req.Constraints {
		if !c.Allows(v) {
			return false
		}
	}
	return true
}

// Resolver maps a request onto a resource.Resolution. It never retries and never
// caches: every call reads the live catalog.
type Resolver struct {
	client catalog.Client
	log    *zap.SugaredLogger
}

// New creates a Resolver. A nil logger disables logging.
func New(client catalog.Client, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{client: client, log: log}
}

// Resolve selects the preferred compatible version for req.
func (r *Resolver) Resolve(ctx context.Context, req Request) resource.Resolution {
	log := r.log.With(zap.String("project_id", req.ProjectID), zap.String("target", req.Target.String()))

	var best *resource.VersionRecord
	for v, err := range r.client.ListVersions(ctx, req.ProjectID) {
		if err != nil {
			log.Warnw("Failed to list project versions", zap.Error(err))
			return resource.Resolution{
				Kind: resource.ResolutionFailed,
				Err:  fmt.Errorf("list versions of %s: %w", req.ProjectID, err),
			}
		}
		if !v.CompatibleWith(req.Target, req.Kind) || !req.allows(v) {
			continue
		}
		if best == nil || Better(v, *best, req.Channel) {
			candidate := v
			best = &candidate
		}
	}

	if best == nil {
		log.Debugw("No compatible version")
		return resource.Resolution{Kind: resource.NoCompatibleVersion}
	}
	if req.Installed != nil && resource.SameArtifact(*req.Installed, *best) {
		return resource.Resolution{Kind: resource.UpToDate, Version: best}
	}
	log.Debugw("Selected version", zap.String("version_id", best.ID), zap.String("channel", best.Channel.String()))
	return resource.Resolution{Kind: resource.Resolved, Version: best}
}

// Better reports whether a should be chosen over b: preferred channel first, then the
// most recently published, then the lexicographically greater identifier.
func Better(a, b resource.VersionRecord, pref resource.Channel) bool {
	if ra, rb := a.Channel.Rank(pref), b.Channel.Rank(pref); ra != rb {
		return ra < rb
	}
	if !a.Published.Equal(b.Published) {
		return a.Published.After(b.Published)
	}
	return a.ID > b.ID
}

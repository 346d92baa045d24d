// Package planner turns the installed set plus the user's additions into a plan of
// installs, updates, skips and conflicts for a target. Planning never mutates state.
package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"resource-downloader/catalog"
	"resource-downloader/progress"
	"resource-downloader/resolver"
	"resource-downloader/resource"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxCycles bounds dependency expansion rounds.
const maxCycles = 20

// Desired is a project the user wants added to the installed set.
type Desired struct {
	ProjectID  string
	Constraint resource.Constraint
}

// Options tune a Planner.
type Options struct {
	// Channel is the least stable release channel treated as equal to release.
	Channel resource.Channel
	// InstallationType is client, server or both; projects that do not support it
	// are skipped.
	InstallationType string
	// Workers bounds concurrent catalog queries. Defaults to 4.
	Workers int
	Sink    progress.Sink
	Log     *zap.SugaredLogger
}

// Planner is the compatibility engine.
type Planner struct {
	client   catalog.Client
	resolver *resolver.Resolver
	opts     Options
	log      *zap.SugaredLogger
}

// New creates a Planner over client.
func New(client catalog.Client, opts Options) *Planner {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Planner{
		client:   client,
		resolver: resolver.New(client, opts.Log),
		opts:     opts,
		log:      opts.Log,
	}
}

type node struct {
	id        string
	title     string
	kind      resource.Kind
	installed *resource.InstalledEntry
	root      bool
	described bool
	own       []resource.Constraint

	incoming    map[string]resource.Constraint
	resolvedKey string
	resolved    bool
	res         resource.Resolution

	skipReason string
	failReason string
	conflicts  []string
}

type pass struct {
	*Planner
	target resource.Target
	nodes  map[string]*node
}

// Plan computes the actions needed to bring installed plus desired into a consistent,
// installable set for target. The returned error is only set when ctx ends; every
// per-project problem is reported on its entry.
func (p *Planner) Plan(ctx context.Context, target resource.Target, installed []resource.InstalledEntry, desired []Desired) (Plan, error) {
	ps := &pass{Planner: p, target: target, nodes: make(map[string]*node)}

	for i := range installed {
		e := installed[i]
		n := ps.node(e.ProjectID)
		n.root = true
		n.installed = &e
		n.kind = e.Kind
		n.title = e.Title
		if e.Pinned {
			n.own = []resource.Constraint{{VersionID: e.Version.ID}}
		}
	}
	for _, d := range desired {
		n := ps.node(d.ProjectID)
		n.root = true
		if !d.Constraint.IsZero() {
			n.own = []resource.Constraint{d.Constraint}
		}
	}

	if err := ps.describe(ctx, ps.sortedIDs()); err != nil {
		return Plan{}, err
	}

	for cycle := 0; ; cycle++ {
		ps.rebuildEdges()
		pending := ps.pending()
		if len(pending) == 0 {
			break
		}
		if cycle >= maxCycles {
			for _, id := range pending {
				ps.nodes[id].failReason = "dependencies recurse too deeply"
			}
			break
		}
		if err := ps.describe(ctx, pending); err != nil {
			return Plan{}, err
		}
		if err := ps.resolve(ctx, pending); err != nil {
			return Plan{}, err
		}
	}

	return ps.build(), nil
}

func (ps *pass) node(id string) *node {
	n, ok := ps.nodes[id]
	if !ok {
		n = &node{id: id, incoming: make(map[string]resource.Constraint)}
		ps.nodes[id] = n
	}
	return n
}

func (ps *pass) sortedIDs() []string {
	ids := make([]string, 0, len(ps.nodes))
	for id := range ps.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// describe fetches each node's project once, for its kind, title and supported sides.
func (ps *pass) describe(ctx context.Context, ids []string) error {
	var todo []*node
	for _, id := range ids {
		n := ps.nodes[id]
		if !n.described && n.failReason == "" {
			n.described = true
			todo = append(todo, n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.opts.Workers)
	for _, n := range todo {
		g.Go(func() error {
			project, err := ps.client.GetProject(gctx, n.id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.failReason = fmt.Sprintf("look up project: %v", err)
				return nil
			}
			if n.installed == nil {
				n.kind = project.Kind
			}
			if n.title == "" {
				n.title = project.Title
			}
			if n.title == "" {
				n.title = n.id
			}
			if !project.SupportsSide(ps.opts.InstallationType) {
				n.skipReason = fmt.Sprintf("not supported on %s", ps.opts.InstallationType)
			}
			return nil
		})
	}
	return g.Wait()
}

// rebuildEdges recomputes incoming constraints from the current selections and drops
// dependency nodes nothing requires any more.
func (ps *pass) rebuildEdges() {
	for {
		for _, n := range ps.nodes {
			clear(n.incoming)
		}
		for _, id := range ps.sortedIDs() {
			n := ps.nodes[id]
			v := n.selected()
			if v == nil {
				continue
			}
			for _, dep := range v.Dependencies {
				if dep.Type != resource.DependencyRequired || dep.ProjectID == n.id {
					continue
				}
				ps.node(dep.ProjectID).incoming[n.id] = dep.Constraint
			}
		}

		dropped := false
		for id, n := range ps.nodes {
			if !n.root && len(n.incoming) == 0 {
				delete(ps.nodes, id)
				dropped = true
			}
		}
		if !dropped {
			return
		}
	}
}

// pending lists nodes whose constraint set changed since they were last resolved.
func (ps *pass) pending() []string {
	var ids []string
	for _, id := range ps.sortedIDs() {
		n := ps.nodes[id]
		if n.failReason != "" || n.skipReason != "" {
			continue
		}
		if !n.resolved || n.resolvedKey != n.constraintKey() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (ps *pass) resolve(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.opts.Workers)
	for _, id := range ids {
		n := ps.nodes[id]
		key := n.constraintKey()
		sources := n.constraintSources()
		n.conflicts = nil
		n.resolved = true
		n.resolvedKey = key
		if pins := distinctPins(sources); len(pins) > 1 {
			n.res = resource.Resolution{}
			n.conflicts = append(n.conflicts, fmt.Sprintf("conflicting version requirements: %s", joinSources(sources)))
			continue
		}
		if n.failReason != "" || n.skipReason != "" {
			continue
		}

		req := resolver.Request{
			ProjectID: n.id,
			Kind:      n.kind,
			Target:    ps.target,
			Channel:   ps.opts.Channel,
		}
		if n.installed != nil {
			installed := n.installed.Version
			req.Installed = &installed
		}
		for _, s := range sources {
			req.Constraints = append(req.Constraints, s.Constraint)
		}

		g.Go(func() error {
			ps.opts.Sink.Emit(n.id, progress.Resolving, "", nil)
			res := ps.resolver.Resolve(gctx, req)
			if res.Kind == resource.ResolutionFailed && ctx.Err() != nil {
				return ctx.Err()
			}
			n.res = res
			return nil
		})
	}
	return g.Wait()
}

func (n *node) selected() *resource.VersionRecord {
	if len(n.conflicts) > 0 || n.skipReason != "" || n.failReason != "" {
		return nil
	}
	if n.res.Kind == resource.Resolved || n.res.Kind == resource.UpToDate {
		return n.res.Version
	}
	return nil
}

func (n *node) constraintSources() []ConstraintSource {
	var out []ConstraintSource
	for _, c := range n.own {
		out = append(out, ConstraintSource{Constraint: c})
	}
	froms := make([]string, 0, len(n.incoming))
	for from := range n.incoming {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		if c := n.incoming[from]; !c.IsZero() {
			out = append(out, ConstraintSource{From: from, Constraint: c})
		}
	}
	return out
}

func (n *node) constraintKey() string {
	var parts []string
	for _, s := range n.constraintSources() {
		parts = append(parts, s.From+"|"+s.Constraint.VersionID+"|"+s.Constraint.Range)
	}
	return strings.Join(parts, ";")
}

func (n *node) dependents() []string {
	out := make([]string, 0, len(n.incoming))
	for from := range n.incoming {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

func distinctPins(sources []ConstraintSource) []string {
	seen := make(map[string]bool)
	var pins []string
	for _, s := range sources {
		if id := s.Constraint.VersionID; id != "" && !seen[id] {
			seen[id] = true
			pins = append(pins, id)
		}
	}
	return pins
}

func joinSources(sources []ConstraintSource) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

// build converts resolutions into entries, then applies incompatibility and conflict
// propagation rules.
func (ps *pass) build() Plan {
	ids := ps.sortedIDs()
	entries := make(map[string]*Entry, len(ids))

	for _, id := range ids {
		n := ps.nodes[id]
		e := &Entry{
			ProjectID:   id,
			Title:       n.title,
			Kind:        n.kind,
			Constraints: n.constraintSources(),
			RequiredBy:  n.dependents(),
			Dependency:  !n.root,
		}
		if n.installed != nil {
			installed := n.installed.Version
			e.Installed = &installed
		}

		switch {
		case n.failReason != "":
			e.Action, e.Reason = Failed, n.failReason
		case n.skipReason != "":
			e.Action, e.Reason = Skip, n.skipReason
		case len(n.conflicts) > 0:
			e.Action, e.Reason = Conflict, strings.Join(n.conflicts, "; ")
		default:
			ps.applyResolution(e, n)
		}
		entries[id] = e
	}

	ps.markIncompatibilities(ids, entries)
	propagateConflicts(ids, ps.nodes, entries)
	dropOrphans(ids, entries)

	plan := Plan{Target: ps.target, Entries: make([]Entry, 0, len(ids))}
	for _, id := range ids {
		plan.Entries = append(plan.Entries, *entries[id])
	}
	return plan
}

func (ps *pass) applyResolution(e *Entry, n *node) {
	switch n.res.Kind {
	case resource.ResolutionFailed:
		e.Action = Failed
		e.Reason = n.res.Err.Error()
		var te *catalog.TransportError
		if errors.As(n.res.Err, &te) && errors.Is(te, catalog.ErrNotFound) {
			e.Reason = "project not found in catalog"
		}
	case resource.NoCompatibleVersion:
		e.Action = Conflict
		e.Reason = fmt.Sprintf("no version compatible with %s", ps.target)
		if len(e.Constraints) > 0 {
			e.Reason += " satisfying " + joinSources(e.Constraints)
		}
	case resource.UpToDate:
		e.Action, e.Version, e.Reason = Skip, n.res.Version, "up to date"
	case resource.Resolved:
		e.Version = n.res.Version
		if n.installed != nil {
			e.Action = Update
		} else {
			e.Action = Install
		}
	}
}

// markIncompatibilities flags projects whose selected version declares a project in
// the final set as incompatible.
func (ps *pass) markIncompatibilities(ids []string, entries map[string]*Entry) {
	present := func(id string) bool {
		e, ok := entries[id]
		if !ok {
			return false
		}
		switch e.Action {
		case Install, Update:
			return true
		case Skip:
			return e.Version != nil || ps.nodes[id].installed != nil
		}
		return false
	}

	for _, id := range ids {
		e := entries[id]
		if e.Action != Install && e.Action != Update && e.Action != Skip {
			continue
		}
		v := ps.nodes[id].selected()
		if v == nil {
			continue
		}
		var clashes []string
		for _, dep := range v.Dependencies {
			if dep.Type == resource.DependencyIncompatible && present(dep.ProjectID) {
				clashes = append(clashes, dep.ProjectID)
			}
		}
		if len(clashes) > 0 {
			sort.Strings(clashes)
			e.Action = Conflict
			e.Reason = "incompatible with " + strings.Join(clashes, ", ")
		}
	}
}

// propagateConflicts marks every project that requires a conflicted or failed project
// as conflicted itself, transitively.
func propagateConflicts(ids []string, nodes map[string]*node, entries map[string]*Entry) {
	for changed := true; changed; {
		changed = false
		for _, id := range ids {
			e := entries[id]
			if e.Action != Conflict && e.Action != Failed {
				continue
			}
			for _, from := range nodes[id].dependents() {
				dependent, ok := entries[from]
				if !ok || dependent.Action == Conflict || dependent.Action == Failed {
					continue
				}
				dependent.Action = Conflict
				dependent.Reason = fmt.Sprintf("requires %s: %s", id, e.Reason)
				changed = true
			}
		}
	}
}

// dropOrphans skips dependencies that would only be installed for projects that are
// not going to be installed, transitively.
func dropOrphans(ids []string, entries map[string]*Entry) {
	wanted := func(id string) bool {
		e, ok := entries[id]
		if !ok {
			return false
		}
		switch e.Action {
		case Install, Update:
			return true
		case Skip:
			return e.Version != nil || e.Installed != nil
		}
		return false
	}

	for changed := true; changed; {
		changed = false
		for _, id := range ids {
			e := entries[id]
			if !e.Dependency || e.Action != Install || len(e.RequiredBy) == 0 {
				continue
			}
			if slices.ContainsFunc(e.RequiredBy, wanted) {
				continue
			}
			e.Action = Skip
			e.Version = nil
			e.Reason = "required only by skipped or conflicted " + strings.Join(e.RequiredBy, ", ")
			changed = true
		}
	}
}

package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"resource-downloader/resource"

	"github.com/gowebpki/jcs"
)

// Action is what the plan proposes for a project.
type Action int

const (
	Skip Action = iota
	Install
	Update
	Conflict
	// Failed marks a project whose versions could not be read from the catalog.
	Failed
)

func (a Action) String() string {
	switch a {
	case Install:
		return "install"
	case Update:
		return "update"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return "skip"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ConstraintSource is a constraint together with the project that imposed it. From is
// empty for constraints the user set (pins, explicit versions).
type ConstraintSource struct {
	From       string
	Constraint resource.Constraint
}

func (c ConstraintSource) String() string {
	from := c.From
	if from == "" {
		from = "user"
	}
	return fmt.Sprintf("%s requires %s", from, c.Constraint)
}

// Entry is one line of a plan.
type Entry struct {
	ProjectID string
	Title     string
	Kind      resource.Kind
	Action    Action
	// Version is the selected version for Install, Update and up-to-date Skips.
	Version *resource.VersionRecord `json:",omitempty"`
	// Installed is the version installed when the plan was made.
	Installed   *resource.VersionRecord `json:",omitempty"`
	Reason      string                  `json:",omitempty"`
	Constraints []ConstraintSource      `json:",omitempty"`
	RequiredBy  []string                `json:",omitempty"`
	Dependency  bool
}

// UserPin returns the version the user pinned e to, or "".
func (e Entry) UserPin() string {
	for _, c := range e.Constraints {
		if c.From == "" && c.Constraint.VersionID != "" {
			return c.Constraint.VersionID
		}
	}
	return ""
}

// Executable reports whether the orchestrator should act on e.
func (e Entry) Executable() bool {
	return (e.Action == Install || e.Action == Update) && e.Version != nil
}

// Plan is the advisory, ordered result of a planning pass.
type Plan struct {
	Target  resource.Target
	Entries []Entry
}

// Count returns how many entries carry action a.
func (p Plan) Count(a Action) int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == a {
			n++
		}
	}
	return n
}

// Entry returns the entry for projectID.
func (p Plan) Entry(projectID string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.ProjectID == projectID {
			return e, true
		}
	}
	return Entry{}, false
}

// Digest returns the sha256 of the plan's RFC 8785 canonical JSON form. Two plans with
// equal digests are structurally equal.
func (p Plan) Digest() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for %s\n", p.Target)
	for _, e := range p.Entries {
		version := "-"
		if e.Version != nil {
			version = e.Version.VersionNumber
			if version == "" {
				version = e.Version.ID
			}
		}
		fmt.Fprintf(&b, "  %-8s %-30s %-20s %s\n", e.Action, e.ProjectID, version, e.Reason)
	}
	return b.String()
}

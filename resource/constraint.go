package resource

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/unascribed/FlexVer/go/flexver"
)

// Constraint narrows the acceptable versions of a project. The zero value accepts
// anything.
type Constraint struct {
	// VersionID pins one exact version.
	VersionID string
	// Range is a semver constraint such as ">=1.2, <2" checked against VersionNumber.
	Range string
}

// IsZero reports whether c places no restriction.
func (c Constraint) IsZero() bool {
	return c.VersionID == "" && c.Range == ""
}

func (c Constraint) String() string {
	switch {
	case c.IsZero():
		return "any"
	case c.Range == "":
		return "=" + c.VersionID
	case c.VersionID == "":
		return c.Range
	}
	return fmt.Sprintf("=%s (%s)", c.VersionID, c.Range)
}

// Allows reports whether v satisfies c.
func (c Constraint) Allows(v VersionRecord) bool {
	if c.VersionID != "" && c.VersionID != v.ID {
		return false
	}
	if c.Range == "" {
		return true
	}
	return rangeAllows(c.Range, v.VersionNumber)
}

// Validate checks that the range, if any, parses.
func (c Constraint) Validate() error {
	if c.Range == "" {
		return nil
	}
	if _, err := semver.NewConstraint(c.Range); err == nil {
		return nil
	}
	for _, clause := range splitClauses(c.Range) {
		if _, _, ok := parseClause(clause); !ok {
			return fmt.Errorf("invalid version range %q", c.Range)
		}
	}
	return nil
}

// rangeAllows uses semver when both sides parse and falls back to FlexVer ordering for
// the free-form version numbers many mods publish (e.g. "mc1.20.1-0.5.3").
func rangeAllows(rng, version string) bool {
	if cons, err := semver.NewConstraint(rng); err == nil {
		if v, err := semver.NewVersion(version); err == nil {
			return cons.Check(v)
		}
	}
	for _, clause := range splitClauses(rng) {
		op, bound, ok := parseClause(clause)
		if !ok || !flexAllows(op, version, bound) {
			return false
		}
	}
	return true
}

func splitClauses(rng string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(rng, func(r rune) bool { return r == ',' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseClause(clause string) (op, bound string, ok bool) {
	for _, candidate := range []string{">=", "<=", "!=", ">", "<", "="} {
		if strings.HasPrefix(clause, candidate) {
			bound = strings.TrimSpace(strings.TrimPrefix(clause, candidate))
			return candidate, bound, bound != ""
		}
	}
	return "=", clause, clause != ""
}

func flexAllows(op, version, bound string) bool {
	less := flexver.Less(version, bound)
	greater := flexver.Less(bound, version)
	switch op {
	case ">=":
		return !less
	case "<=":
		return !greater
	case ">":
		return greater
	case "<":
		return less
	case "!=":
		return less || greater
	default:
		return !less && !greater
	}
}

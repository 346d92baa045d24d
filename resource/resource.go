// Package resource holds the data model shared by the resolver, cache, planner and
// orchestrator.
package resource

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of resource kinds the catalog serves.
type Kind int

const (
	KindMod Kind = iota
	KindShader
	KindResourcePack
	KindDatapack
	KindPlugin
)

var kindNames = map[Kind]string{
	KindMod:          "mod",
	KindShader:       "shader",
	KindResourcePack: "resourcepack",
	KindDatapack:     "datapack",
	KindPlugin:       "plugin",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a catalog project type onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mod", "":
		return KindMod, nil
	case "shader", "shaderpack":
		return KindShader, nil
	case "resourcepack", "resource-pack":
		return KindResourcePack, nil
	case "datapack":
		return KindDatapack, nil
	case "plugin":
		return KindPlugin, nil
	}
	return KindMod, fmt.Errorf("unknown resource kind %q", s)
}

// Dir returns the game subdirectory resources of this kind are installed into.
func (k Kind) Dir() string {
	switch k {
	case KindShader:
		return "shaderpacks"
	case KindResourcePack:
		return "resourcepacks"
	case KindDatapack:
		return "datapacks"
	case KindPlugin:
		return "plugins"
	default:
		return "mods"
	}
}

// FiltersLoader reports whether compatibility for this kind depends on the target loader.
// Shaders, resource packs and datapacks list render pipelines or pack formats as their
// loaders, so only the game version applies to them.
func (k Kind) FiltersLoader() bool {
	return k == KindMod || k == KindPlugin
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindMod, KindShader, KindResourcePack, KindDatapack, KindPlugin}
}

// Channel is a release stability tier. Lower values are more stable.
type Channel int

const (
	Release Channel = iota
	Beta
	Alpha
)

func (c Channel) String() string {
	switch c {
	case Release:
		return "release"
	case Beta:
		return "beta"
	case Alpha:
		return "alpha"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel parses release, beta or alpha.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release", "":
		return Release, nil
	case "beta":
		return Beta, nil
	case "alpha":
		return Alpha, nil
	}
	return Release, fmt.Errorf("unknown release channel %q", s)
}

// Rank orders c under the preference pref: channels at least as stable as pref rank 0,
// the rest rank by distance from pref. Lower rank is preferred.
func (c Channel) Rank(pref Channel) int {
	if c <= pref {
		return 0
	}
	return int(c - pref)
}

// Project is a remote resource identity.
type Project struct {
	ID         string
	Slug       string
	Title      string
	Kind       Kind
	ClientSide string
	ServerSide string
}

// SupportsSide checks if a project can be installed for the given installation type
// (client, server or both).
func (p Project) SupportsSide(installationType string) bool {
	switch strings.ToLower(installationType) {
	case "client":
		return p.ClientSide != "unsupported"
	case "server":
		return p.ServerSide != "unsupported"
	default:
		return true
	}
}

// Target is the environment every compatibility check is made against.
type Target struct {
	GameVersion string
	Loader      string
}

func (t Target) String() string {
	return t.GameVersion + "/" + t.Loader
}

// DependencyType classifies a dependency edge.
type DependencyType int

const (
	DependencyRequired DependencyType = iota
	DependencyOptional
	DependencyIncompatible
	DependencyEmbedded
)

// ParseDependencyType maps catalog dependency types; unknown types are treated as optional.
func ParseDependencyType(s string) DependencyType {
	switch strings.ToLower(s) {
	case "required":
		return DependencyRequired
	case "incompatible":
		return DependencyIncompatible
	case "embedded":
		return DependencyEmbedded
	default:
		return DependencyOptional
	}
}

func (t DependencyType) String() string {
	switch t {
	case DependencyRequired:
		return "required"
	case DependencyIncompatible:
		return "incompatible"
	case DependencyEmbedded:
		return "embedded"
	default:
		return "optional"
	}
}

// Dependency is one entry of a version's dependency list.
type Dependency struct {
	ProjectID  string
	Type       DependencyType
	Constraint Constraint
}

// VersionRecord is one publishable artifact of a project.
type VersionRecord struct {
	ProjectID     string
	ID            string
	VersionNumber string
	GameVersions  []string
	Loaders       []string
	Channel       Channel
	Published     time.Time
	Hashes        map[string]string
	URL           string
	FileName      string
	Size          int64
	Dependencies  []Dependency
}

// CompatibleWith reports whether v can run on target for a resource of kind k.
func (v VersionRecord) CompatibleWith(target Target, k Kind) bool {
	if !containsFold(v.GameVersions, target.GameVersion) {
		return false
	}
	if k.FiltersLoader() && !containsFold(v.Loaders, target.Loader) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// InstalledEntry records what is installed for a project right now.
type InstalledEntry struct {
	ProjectID   string
	Kind        Kind
	Title       string
	Version     VersionRecord
	Path        string
	Pinned      bool
	InstalledAt time.Time
	CheckedAt   time.Time
}

package resource

// ResolutionKind tags a Resolution.
type ResolutionKind int

const (
	Resolved ResolutionKind = iota
	UpToDate
	NoCompatibleVersion
	ResolutionFailed
)

func (k ResolutionKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case UpToDate:
		return "up-to-date"
	case NoCompatibleVersion:
		return "no-compatible-version"
	default:
		return "resolution-failed"
	}
}

// Resolution is the outcome of resolving one project against a target. It is produced
// fresh for every call and never cached.
type Resolution struct {
	Kind ResolutionKind
	// Version is the selected record for Resolved and UpToDate.
	Version *VersionRecord
	// Err is the reason for ResolutionFailed.
	Err error
}

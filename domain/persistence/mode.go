// Package persistence provides the persistence mode value type.
// A process runs with exactly one persistence stack: relational or document.
package persistence

// Mode selects the persistence stack for the lifetime of a process.
type Mode int

const (
	Relational Mode = iota // ORM, migrations and fixtures bundles
	Document               // document mapper bundle
)

// ToggleValue is the only toggle value that selects document mode.
const ToggleValue = "true"

// ParseMode derives the mode from the raw toggle value.
// The comparison is case-sensitive; anything but "true" (including an
// unset variable) is relational.
func ParseMode(raw string) Mode {
	if raw == ToggleValue {
		return Document
	}
	return Relational
}

// String returns the mode name as used in logs and parameters.
func (m Mode) String() string {
	switch m {
	case Document:
		return "document"
	default:
		return "relational"
	}
}

// IsDocument reports whether the document stack is active.
func (m Mode) IsDocument() bool {
	return m == Document
}

// Package archive downloads versioned distribution archives into a shared
// cache and installs them atomically into per-version directories.
package archive

import "strings"

// Spec describes where a package version's archive comes from and how it is
// laid out.
type Spec struct {
	// URL the archive is downloaded from
	URL string
	// Extension of the cached file, without a leading dot (e.g. "tar.gz")
	Extension string
	// RootDir is the top-level directory inside the archive that becomes the
	// install directory
	RootDir string

	// Checksum optionally pins the archive digest as "<algorithm>:<hex>"
	Checksum string
	// SignatureURL optionally points at an armored detached OpenPGP signature
	SignatureURL string
}

// NewSpec builds a Spec, normalizing the extension
func NewSpec(url, extension, rootDir string) Spec {
	return Spec{
		URL:       url,
		Extension: NormalizeExtension(extension),
		RootDir:   rootDir,
	}
}

// NormalizeExtension strips leading dots from an extension
func NormalizeExtension(ext string) string {
	return strings.TrimLeft(ext, ".")
}

// Artifact identifies one archive-backed package version
type Artifact struct {
	ID      string
	Name    string
	Version string
	Spec    Spec
}

// State is the install state of an Artifact
type State int

const (
	StateAbsent State = iota
	StateCached
	StateInstalled
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateCached:
		return "cached"
	case StateInstalled:
		return "installed"
	default:
		return "absent"
	}
}

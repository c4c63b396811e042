package deploy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ralt/clusterdeploy/internal/archive"
	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/models"
)

// Backend selects how a version gets installed
type Backend int

const (
	BackendArchive Backend = iota
	BackendEnvironment
)

func (b Backend) String() string {
	switch b {
	case BackendArchive:
		return "archive"
	case BackendEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

// Version is one installable release of a package. Exactly one of Archive
// and Environment is set.
type Version struct {
	Version string
	// TemplateDir names the release line under conf/<package>/ whose
	// templates apply to this version. Empty means no templates.
	TemplateDir string

	Archive     *archive.Spec
	Environment *conda.Spec
}

// ArchiveVersion declares an archive-backed version
func ArchiveVersion(version, templateDir string, spec archive.Spec) *Version {
	return &Version{Version: version, TemplateDir: templateDir, Archive: &spec}
}

// EnvironmentVersion declares an environment-backed version
func EnvironmentVersion(version, templateDir string, spec conda.Spec) *Version {
	return &Version{Version: version, TemplateDir: templateDir, Environment: &spec}
}

// Backend reports the install family of v
func (v *Version) Backend() Backend {
	if v.Environment != nil {
		return BackendEnvironment
	}
	return BackendArchive
}

// Package is a deployable component together with its known versions
type Package struct {
	ID        string
	Name      string
	Component Component

	versions map[string]*Version
}

// NewPackage creates a package without versions
func NewPackage(id, name string, c Component) *Package {
	return &Package{
		ID:        id,
		Name:      name,
		Component: c,
		versions:  make(map[string]*Version),
	}
}

// AddVersion registers v, failing if the version string is already known
func (p *Package) AddVersion(v *Version) error {
	if v.Archive == nil && v.Environment == nil {
		return models.NewError(models.ErrInvalidSetup, p.ID, "version %s declares no install backend", v.Version)
	}
	if v.Archive != nil && v.Environment != nil {
		return models.NewError(models.ErrInvalidSetup, p.ID, "version %s declares two install backends", v.Version)
	}
	if _, ok := p.versions[v.Version]; ok {
		return models.NewError(models.ErrDuplicateIdentifier, p.ID, "version %s of %s is already registered", v.Version, p.Name)
	}
	p.versions[v.Version] = v
	return nil
}

// Version returns the registered version v
func (p *Package) Version(v string) (*Version, error) {
	pv, ok := p.versions[v]
	if !ok {
		return nil, models.NewError(models.ErrUnknownVersion, p.ID, "version %s of %s has not been registered", v, p.Name)
	}
	return pv, nil
}

// Versions returns every version, oldest first
func (p *Package) Versions() []*Version {
	out := make([]*Version, 0, len(p.versions))
	for _, v := range p.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareVersions(out[i].Version, out[j].Version) < 0
	})
	return out
}

// compareVersions orders dotted or dashed version strings numerically where
// both parts are numbers, lexically otherwise.
func compareVersions(a, b string) int {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' })
	}
	pa, pb := split(a), split(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case pa[i] != pb[i]:
			return strings.Compare(pa[i], pb[i])
		}
	}
	return len(pa) - len(pb)
}

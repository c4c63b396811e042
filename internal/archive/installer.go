package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

// DefaultDownloadTimeout bounds a single archive download
const DefaultDownloadTimeout = 1000 * time.Second

// Installer manages the archive cache and install directories below a
// framework directory:
//
//	<root>/archives/<id>-<version>.<ext>
//	<root>/<id>-<version>/
type Installer struct {
	root    string
	client  *http.Client
	keyring openpgp.KeyRing
}

// Option configures an Installer
type Option func(*Installer)

// WithHTTPClient replaces the HTTP client used for downloads
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) {
		i.client = c
	}
}

// WithKeyring enables signature verification for specs with a SignatureURL
func WithKeyring(k openpgp.KeyRing) Option {
	return func(i *Installer) {
		i.keyring = k
	}
}

// NewInstaller creates an Installer rooted at root
func NewInstaller(root string, timeout time.Duration, opts ...Option) *Installer {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	i := &Installer{
		root:   root,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Root returns the framework directory
func (i *Installer) Root() string {
	return i.root
}

// ArchiveDir returns the archive cache directory
func (i *Installer) ArchiveDir() string {
	return filepath.Join(i.root, "archives")
}

// ArchivePath returns the canonical cache path of a's archive
func (i *Installer) ArchivePath(a Artifact) string {
	name := utils.VersionIdentifier(a.ID, a.Version) + "." + NormalizeExtension(a.Spec.Extension)
	return filepath.Join(i.ArchiveDir(), name)
}

// InstallDir returns the canonical install directory of a
func (i *Installer) InstallDir(a Artifact) string {
	return filepath.Join(i.root, utils.VersionIdentifier(a.ID, a.Version))
}

// State reports how far a has progressed
func (i *Installer) State(a Artifact) State {
	if ok, _ := utils.Exists(i.InstallDir(a)); ok {
		return StateInstalled
	}
	if utils.IsRegularFile(i.ArchivePath(a)) {
		return StateCached
	}
	return StateAbsent
}

// Install drives a to the installed state and returns the absolute install
// directory. With force, an existing install directory is removed first; a
// cached archive is reused.
func (i *Installer) Install(ctx context.Context, a Artifact, force bool) (string, error) {
	log := logFor(a)

	if force {
		if err := i.Uninstall(a); err != nil {
			return "", err
		}
	}

	log.Infof("Obtaining %s version %s distribution...", a.Name, a.Version)
	if err := i.EnsureCached(ctx, a); err != nil {
		return "", err
	}

	log.Infof("Installing %s version %s...", a.Name, a.Version)
	dir, err := i.EnsureInstalled(a)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &models.DeployError{Type: models.ErrInstallFailed, Package: a.Name, Err: err}
	}
	log.Infof("%s version %s is now available at %s", a.Name, a.Version, abs)
	return abs, nil
}

// Uninstall resets a to at most the cached state
func (i *Installer) Uninstall(a Artifact) error {
	dir := i.InstallDir(a)
	logFor(a).Debugf("Removing previous installation at %s", dir)
	if err := os.RemoveAll(dir); err != nil {
		return &models.DeployError{
			Type:    models.ErrInstallFailed,
			Package: a.Name,
			Err:     fmt.Errorf("failed to remove %s: %w", dir, err),
		}
	}
	return nil
}

// EnsureCached downloads a's archive unless it is already cached
func (i *Installer) EnsureCached(ctx context.Context, a Artifact) error {
	log := logFor(a)
	archivePath := i.ArchivePath(a)

	if utils.IsRegularFile(archivePath) {
		log.Debugf("Found previously downloaded archive %s, skipping download", archivePath)
		return nil
	}

	if err := utils.EnsureDir(i.ArchiveDir()); err != nil {
		return &models.DeployError{
			Type:    models.ErrDownloadFailed,
			Package: a.Name,
			Err:     fmt.Errorf("cannot create directory %s to store the archive: %w", i.ArchiveDir(), err),
		}
	}

	log.Infof("Downloading %s version %s from %s", a.Name, a.Version, a.Spec.URL)
	if err := i.download(ctx, a, archivePath); err != nil {
		return &models.DeployError{Type: models.ErrDownloadFailed, Package: a.Name, Err: err}
	}
	log.Debug("Download complete")
	return nil
}

// EnsureInstalled extracts the cached archive into the install directory
// unless that directory already exists. Extraction happens in a private
// temporary directory, and only the archive's root directory is moved into
// place.
func (i *Installer) EnsureInstalled(a Artifact) (string, error) {
	log := logFor(a)
	target := i.InstallDir(a)

	if ok, _ := utils.Exists(target); ok {
		log.Debugf("Found previous installation at %s", target)
		return target, nil
	}

	archivePath := i.ArchivePath(a)
	if !utils.IsRegularFile(archivePath) {
		return "", models.NewError(models.ErrMissingArchive, a.Name,
			"archive for version %s is not present in %s", a.Version, i.ArchiveDir())
	}

	if err := utils.EnsureDir(i.root); err != nil {
		return "", installFailed(a, fmt.Errorf("cannot create %s: %w", i.root, err))
	}
	tmp, err := os.MkdirTemp(i.root, ".extract-")
	if err != nil {
		return "", installFailed(a, fmt.Errorf("failed to create temporary directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			log.Warnf("Failed to remove temporary directory %s: %v", tmp, err)
		}
	}()

	log.Debugf("Extracting %s into %s", archivePath, tmp)
	if err := Extract(archivePath, a.Spec.Extension, tmp); err != nil {
		return "", installFailed(a, fmt.Errorf("failed to extract %s: %w", archivePath, err))
	}

	src, err := rootDir(tmp, a.Spec.RootDir)
	if err != nil {
		return "", installFailed(a, fmt.Errorf("archive %s: %w", archivePath, err))
	}
	return i.moveIntoPlace(a, src, target)
}

// moveIntoPlace renames the extracted root directory to target. Losing the
// rename to another install of the same version is not an error.
func (i *Installer) moveIntoPlace(a Artifact, src, target string) (string, error) {
	if err := os.Rename(src, target); err != nil {
		if ok, _ := utils.Exists(target); ok && isExistsError(err) {
			logFor(a).Debugf("Install directory %s appeared concurrently", target)
			return target, nil
		}
		return "", installFailed(a, fmt.Errorf("failed to move %s to %s: %w", a.Spec.RootDir, target, err))
	}
	return target, nil
}

func isExistsError(err error) bool {
	return errors.Is(err, os.ErrExist) || errors.Is(err, errDirNotEmpty)
}

func installFailed(a Artifact, err error) error {
	return &models.DeployError{Type: models.ErrInstallFailed, Package: a.Name, Err: err}
}

func logFor(a Artifact) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"package": a.ID,
		"version": a.Version,
	})
}

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

// TraversalError reports an archive entry that would land outside the
// extraction root
type TraversalError struct {
	Entry string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("attempted path traversal in archive entry %q", e.Entry)
}

// Extract unpacks the archive at path into dest, which must exist.
func Extract(path, ext, dest string) error {
	format, compression, err := resolveFormat(path, ext)
	if err != nil {
		return fmt.Errorf("cannot determine format of %s: %w", path, err)
	}
	x, err := newExtractor(dest)
	if err != nil {
		return err
	}

	switch format {
	case FormatTar:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		r, closer, err := utils.Decompress(f, compression)
		if err != nil {
			return fmt.Errorf("failed to open %s stream: %w", compression, err)
		}
		defer closer()
		return x.tar(tar.NewReader(r))
	case FormatRpm:
		return x.rpm(path)
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}
}

// rootDir locates the directory called name inside an extracted archive. It
// must be a real directory strictly below dest.
func rootDir(dest, name string) (string, error) {
	x, err := newExtractor(dest)
	if err != nil {
		return "", err
	}
	src, err := x.path(name)
	if err != nil || src == x.root {
		return "", fmt.Errorf("invalid archive root directory %q", name)
	}
	info, err := os.Lstat(src)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("no top-level directory %q", name)
	}
	return src, nil
}

// extractor writes archive entries below root. Every path is resolved
// against what is already on disk, so links created by earlier entries
// cannot carry later entries outside root.
type extractor struct {
	root string
}

func newExtractor(dest string) (*extractor, error) {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve extraction directory: %w", err)
	}
	return &extractor{root: root}, nil
}

// resolve walks rel from base one component at a time, following links
// that exist at that point. It fails as soon as a step leaves root.
func (x *extractor) resolve(base, rel string) (string, bool) {
	cur := base
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			if real, err := filepath.EvalSymlinks(cur); err == nil {
				cur = real
			}
		}
		if !utils.IsWithin(x.root, cur) {
			return "", false
		}
	}
	return cur, true
}

// path returns where the entry called name is created. The parent is fully
// resolved; the last component is not, so the entry itself may be a link.
func (x *extractor) path(name string) (string, error) {
	if filepath.IsAbs(name) || !utils.IsWithin(x.root, filepath.Join(x.root, name)) {
		return "", &TraversalError{Entry: name}
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return x.root, nil
	}
	parent, ok := x.resolve(x.root, filepath.Dir(clean))
	if !ok {
		return "", &TraversalError{Entry: name}
	}
	return filepath.Join(parent, filepath.Base(clean)), nil
}

// dir returns the real directory an existing entry called name points to.
func (x *extractor) dir(name string) (string, error) {
	target, ok := x.resolve(x.root, name)
	if !ok || filepath.IsAbs(name) {
		return "", &TraversalError{Entry: name}
	}
	return target, nil
}

func (x *extractor) mkdir(name string, mode os.FileMode) error {
	target, err := x.path(name)
	if err != nil {
		return err
	}
	if isSymlink(target) {
		if _, err := x.dir(name); err != nil {
			return err
		}
	}
	return os.MkdirAll(target, mode|0700)
}

func (x *extractor) file(name string, mode os.FileMode, r io.Reader) error {
	target, err := x.path(name)
	if err != nil {
		return err
	}
	// a link left by an earlier entry is replaced, never written through
	if isSymlink(target) {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	return writeEntry(target, mode, r)
}

func (x *extractor) symlink(name, linkname string) error {
	target, err := x.path(name)
	if err != nil {
		return err
	}
	if filepath.IsAbs(linkname) {
		return &TraversalError{Entry: linkname}
	}
	if _, ok := x.resolve(filepath.Dir(target), linkname); !ok {
		return &TraversalError{Entry: linkname}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Symlink(linkname, target)
}

func (x *extractor) hardlink(name, linkname string) error {
	target, err := x.path(name)
	if err != nil {
		return err
	}
	source, err := x.dir(linkname)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Link(source, target)
}

func (x *extractor) tar(tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		mode := hdr.FileInfo().Mode().Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = x.mkdir(hdr.Name, mode)
		case tar.TypeReg, tar.TypeRegA:
			err = x.file(hdr.Name, mode, tr)
		case tar.TypeSymlink:
			err = x.symlink(hdr.Name, hdr.Linkname)
		case tar.TypeLink:
			err = x.hardlink(hdr.Name, hdr.Linkname)
		default:
			logrus.Debugf("Skipping archive entry %s of type %c", hdr.Name, hdr.Typeflag)
		}
		if err != nil {
			return fmt.Errorf("tar extract %q failed: %w", hdr.Name, err)
		}
	}
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func writeEntry(target string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(target, mode)
}

package archive

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sassoftware/go-rpmutils"
	"github.com/sirupsen/logrus"
)

// cpio file type bits
const (
	cpioTypeMask = 0170000
	cpioDir      = 0040000
	cpioRegular  = 0100000
	cpioSymlink  = 0120000
)

// rpm unpacks the cpio payload of an RPM package
func (x *extractor) rpm(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return fmt.Errorf("failed to read RPM: %w", err)
	}
	logrus.Debugf("Extracting RPM %s %s-%s", getStringTag(rpm, rpmutils.NAME),
		getStringTag(rpm, rpmutils.VERSION), getStringTag(rpm, rpmutils.RELEASE))

	pr, err := rpm.PayloadReaderExtended()
	if err != nil {
		return fmt.Errorf("failed to open RPM payload: %w", err)
	}
	return x.payload(pr)
}

func (x *extractor) payload(pr rpmutils.PayloadReader) error {
	for {
		fi, err := pr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := strings.TrimLeft(strings.TrimPrefix(fi.Name(), "./"), "/")
		if name == "" {
			continue
		}
		mode := os.FileMode(fi.Mode() & 0777)

		switch fi.Mode() & cpioTypeMask {
		case cpioDir:
			err = x.mkdir(name, mode)
		case cpioSymlink:
			err = x.symlink(name, fi.Linkname())
		case cpioRegular:
			if pr.IsLink() {
				logrus.Debugf("Skipping hardlinked RPM entry %s", name)
				continue
			}
			err = x.file(name, mode, pr)
		default:
			logrus.Debugf("Skipping RPM entry %s", name)
		}
		if err != nil {
			return fmt.Errorf("rpm extract %q failed: %w", name, err)
		}
	}
}

// getStringTag safely gets a string tag from RPM
func getStringTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	default:
		return fmt.Sprintf("%v", v)
	}

	return ""
}

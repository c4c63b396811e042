package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

// download fetches a's archive into a temporary file next to dest, verifies
// it and renames it into place. The temporary file never outlives a failure.
func (i *Installer) download(ctx context.Context, a Artifact, dest string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("cannot create download file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
				logrus.Warnf("Cannot remove partial download %s: %v", tmpName, rmErr)
			}
		}
	}()

	if err := i.fetch(ctx, a.Spec.URL, tmp); err != nil {
		return fmt.Errorf("failed to download %s from %s: %w", a.Name, a.Spec.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if a.Spec.Checksum != "" {
		if err := utils.VerifyChecksum(tmpName, a.Spec.Checksum); err != nil {
			return fmt.Errorf("archive from %s: %w", a.Spec.URL, err)
		}
		logrus.Debugf("Checksum of %s verified", a.Spec.URL)
	}

	if a.Spec.SignatureURL != "" {
		if err := i.verifySignature(ctx, a, tmpName); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("cannot move download into %s: %w", dest, err)
	}
	return nil
}

func (i *Installer) verifySignature(ctx context.Context, a Artifact, path string) error {
	if i.keyring == nil {
		logrus.Warnf("No keyring configured, not verifying signature of %s", a.Spec.URL)
		return nil
	}

	var sig bytes.Buffer
	if err := i.fetch(ctx, a.Spec.SignatureURL, &sig); err != nil {
		return fmt.Errorf("failed to download signature from %s: %w", a.Spec.SignatureURL, err)
	}
	if err := VerifySignature(i.keyring, path, sig.Bytes()); err != nil {
		return fmt.Errorf("archive from %s: %w", a.Spec.URL, err)
	}
	logrus.Debugf("Signature of %s verified", a.Spec.URL)
	return nil
}

func (i *Installer) fetch(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// LoadKeyring reads an OpenPGP public keyring, armored or binary
func LoadKeyring(keyPath string) (openpgp.EntityList, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("key path is empty")
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	entityList, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entityList, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
	}

	if len(entityList) == 0 {
		return nil, fmt.Errorf("no keys found in keyring")
	}
	return entityList, nil
}

// VerifySignature checks a detached signature, armored or binary, over the
// file at path.
func VerifySignature(keyring openpgp.KeyRing, path string, signature []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, bytes.NewReader(signature), nil)
	if err == nil {
		return nil
	}

	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return seekErr
	}
	if _, binErr := openpgp.CheckDetachedSignature(keyring, f, bytes.NewReader(signature), nil); binErr != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

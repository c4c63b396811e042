package utils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Digests holds the digests accepted for archive verification
type Digests struct {
	SHA256 string
	SHA512 string
	Size   int64
}

// CalculateDigests hashes the file at path with every supported algorithm
// in a single pass
func CalculateDigests(path string) (*Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sha256Hash := sha256.New()
	sha512Hash := sha512.New()
	n, err := io.Copy(io.MultiWriter(sha256Hash, sha512Hash), f)
	if err != nil {
		return nil, err
	}

	return &Digests{
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		SHA512: hex.EncodeToString(sha512Hash.Sum(nil)),
		Size:   n,
	}, nil
}

// Get returns the digest for algorithm ("sha256" or "sha512")
func (d *Digests) Get(algorithm string) (string, bool) {
	switch strings.ToLower(algorithm) {
	case "sha256":
		return d.SHA256, true
	case "sha512":
		return d.SHA512, true
	}
	return "", false
}

// VerifyChecksum checks path against an expected digest written as
// "<algorithm>:<hex>", e.g. "sha512:9f86d0...".
func VerifyChecksum(path, expected string) error {
	algorithm, want, ok := strings.Cut(expected, ":")
	if !ok || want == "" {
		return fmt.Errorf("malformed checksum %q, expected <algorithm>:<hex>", expected)
	}

	digests, err := CalculateDigests(path)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}

	got, ok := digests.Get(algorithm)
	if !ok {
		return fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("%s mismatch: expected %s, got %s", algorithm, want, got)
	}
	return nil
}

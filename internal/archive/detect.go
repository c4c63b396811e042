package archive

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ralt/clusterdeploy/internal/utils"
)

// Format is the container format of an archive
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatRpm
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatRpm:
		return "rpm"
	default:
		return "unknown"
	}
}

// RPM packages start with 0xED 0xAB 0xEE 0xDB
var rpmMagic = []byte{0xED, 0xAB, 0xEE, 0xDB}

// FormatFromExtension maps a normalized extension onto a format and the
// compression wrapped around it
func FormatFromExtension(ext string) (Format, utils.Compression, bool) {
	switch strings.ToLower(NormalizeExtension(ext)) {
	case "tar.gz", "tgz":
		return FormatTar, utils.CompressionGzip, true
	case "tar.xz", "txz":
		return FormatTar, utils.CompressionXZ, true
	case "tar.zst", "tzst":
		return FormatTar, utils.CompressionZstd, true
	case "tar":
		return FormatTar, utils.CompressionNone, true
	case "rpm":
		return FormatRpm, utils.CompressionNone, true
	default:
		return FormatUnknown, utils.CompressionNone, false
	}
}

// DetectFormat determines the archive format from its magic bytes
func DetectFormat(path string) (Format, utils.Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, utils.CompressionNone, err
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return FormatUnknown, utils.CompressionNone, err
	}
	header = header[:n]

	if bytes.HasPrefix(header, rpmMagic) {
		return FormatRpm, utils.CompressionNone, nil
	}
	if c := utils.DetectCompression(header); c != utils.CompressionNone {
		return FormatTar, c, nil
	}
	// ustar magic lives at offset 257
	if len(header) >= 262 && string(header[257:262]) == "ustar" {
		return FormatTar, utils.CompressionNone, nil
	}
	return FormatUnknown, utils.CompressionNone, fmt.Errorf("unrecognized archive format")
}

// resolveFormat prefers the declared extension and falls back to sniffing
func resolveFormat(path, ext string) (Format, utils.Compression, error) {
	if format, c, ok := FormatFromExtension(ext); ok {
		return format, c, nil
	}
	return DetectFormat(path)
}

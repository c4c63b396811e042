package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/klauspost/compress/gzip"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		mode := e.mode
		if mode == 0 {
			mode = 0644
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     mode,
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(buildTar(t, entries))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

var kafkaEntries = []entry{
	{name: "kafka_2.13-2.7.0/", typeflag: tar.TypeDir, mode: 0755},
	{name: "kafka_2.13-2.7.0/bin/kafka-server-start.sh", body: "#!/bin/sh\necho start\n", mode: 0755},
	{name: "kafka_2.13-2.7.0/config/server.properties", body: "broker.id=0\n"},
	{name: "kafka_2.13-2.7.0/bin/start", typeflag: tar.TypeSymlink, linkname: "kafka-server-start.sh"},
	{name: "NOTICE", body: "outside the root dir"},
}

type archiveServer struct {
	*httptest.Server
	hits atomic.Int32
}

func serveArchive(t *testing.T, files map[string][]byte) *archiveServer {
	t.Helper()
	s := &archiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.hits.Add(1)
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func kafkaArtifact(url string) Artifact {
	return Artifact{
		ID:      "kafka",
		Name:    "Kafka",
		Version: "2.13-2.7.0",
		Spec:    NewSpec(url, ".tgz", "kafka_2.13-2.7.0"),
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": buildTarGz(t, kafkaEntries)})
	root := filepath.Join(t.TempDir(), "frameworks")
	inst := NewInstaller(root, time.Minute)
	a := kafkaArtifact(srv.URL + "/kafka.tgz")

	require.Equal(t, StateAbsent, inst.State(a))

	dir, err := inst.Install(context.Background(), a, false)
	require.NoError(t, err)
	require.Equal(t, StateInstalled, inst.State(a))
	require.True(t, filepath.IsAbs(dir))
	require.FileExists(t, filepath.Join(root, "archives", "kafka-2.13-2.7.0.tgz"))

	script := filepath.Join(dir, "bin", "kafka-server-start.sh")
	info, err := os.Stat(script)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dir, "bin", "start"))
	require.NoError(t, err)
	require.Equal(t, "kafka-server-start.sh", link)

	// A marker proves the second install does not re-extract.
	marker := filepath.Join(dir, "marker")
	require.NoError(t, os.WriteFile(marker, nil, 0644))

	again, err := inst.Install(context.Background(), a, false)
	require.NoError(t, err)
	require.Equal(t, dir, again)
	require.FileExists(t, marker)
	require.Equal(t, int32(1), srv.hits.Load())

	assertNoTempDirs(t, root)
}

func TestForceReinstallReusesCachedArchive(t *testing.T) {
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": buildTarGz(t, kafkaEntries)})
	root := t.TempDir()
	inst := NewInstaller(root, time.Minute)
	a := kafkaArtifact(srv.URL + "/kafka.tgz")

	dir, err := inst.Install(context.Background(), a, false)
	require.NoError(t, err)
	marker := filepath.Join(dir, "marker")
	require.NoError(t, os.WriteFile(marker, nil, 0644))

	_, err = inst.Install(context.Background(), a, true)
	require.NoError(t, err)
	require.NoFileExists(t, marker)
	require.FileExists(t, filepath.Join(dir, "config", "server.properties"))
	require.Equal(t, int32(1), srv.hits.Load())
}

func TestEnsureInstalledWithoutArchive(t *testing.T) {
	inst := NewInstaller(t.TempDir(), time.Minute)
	_, err := inst.EnsureInstalled(kafkaArtifact("http://unused"))
	require.True(t, models.IsType(err, models.ErrMissingArchive))
}

func TestDownloadFailureLeavesNoPartialFile(t *testing.T) {
	srv := serveArchive(t, map[string][]byte{})
	root := t.TempDir()
	inst := NewInstaller(root, time.Minute)
	a := kafkaArtifact(srv.URL + "/missing.tgz")

	err := inst.EnsureCached(context.Background(), a)
	require.True(t, models.IsType(err, models.ErrDownloadFailed))
	require.Contains(t, err.Error(), "HTTP status 404")

	entries, err := os.ReadDir(inst.ArchiveDir())
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, StateAbsent, inst.State(a))
}

func TestDownloadChecksumMismatch(t *testing.T) {
	data := buildTarGz(t, kafkaEntries)
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": data})
	inst := NewInstaller(t.TempDir(), time.Minute)

	a := kafkaArtifact(srv.URL + "/kafka.tgz")
	a.Spec.Checksum = "sha256:0000"
	err := inst.EnsureCached(context.Background(), a)
	require.True(t, models.IsType(err, models.ErrDownloadFailed))
	require.Equal(t, StateAbsent, inst.State(a))

	sum := sha256.Sum256(data)
	a.Spec.Checksum = "sha256:" + hex.EncodeToString(sum[:])
	require.NoError(t, inst.EnsureCached(context.Background(), a))
	require.Equal(t, StateCached, inst.State(a))
}

func TestPathTraversalFailsInstall(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "frameworks")
	evil := buildTarGz(t, []entry{
		{name: "kafka_2.13-2.7.0/", typeflag: tar.TypeDir, mode: 0755},
		{name: "../../etc/passed", body: "owned"},
	})
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": evil})
	inst := NewInstaller(root, time.Minute)
	a := kafkaArtifact(srv.URL + "/kafka.tgz")

	_, err := inst.Install(context.Background(), a, false)
	require.True(t, models.IsType(err, models.ErrInstallFailed))
	require.Contains(t, err.Error(), "path traversal")

	require.NoFileExists(t, filepath.Join(base, "etc", "passed"))
	require.NoDirExists(t, inst.InstallDir(a))
	assertNoTempDirs(t, root)
}

func TestSymlinkEscapeFailsInstall(t *testing.T) {
	root := t.TempDir()
	evil := buildTarGz(t, []entry{
		{name: "kafka_2.13-2.7.0/", typeflag: tar.TypeDir, mode: 0755},
		{name: "kafka_2.13-2.7.0/etc", typeflag: tar.TypeSymlink, linkname: "/etc"},
	})
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": evil})
	inst := NewInstaller(root, time.Minute)

	_, err := inst.Install(context.Background(), kafkaArtifact(srv.URL+"/kafka.tgz"), false)
	require.True(t, models.IsType(err, models.ErrInstallFailed))
	assertNoTempDirs(t, root)
}

func TestMissingRootDirFailsInstall(t *testing.T) {
	root := t.TempDir()
	srv := serveArchive(t, map[string][]byte{"/kafka.tgz": buildTarGz(t, []entry{{name: "other/file", body: "x"}})})
	inst := NewInstaller(root, time.Minute)

	_, err := inst.Install(context.Background(), kafkaArtifact(srv.URL+"/kafka.tgz"), false)
	require.True(t, models.IsType(err, models.ErrInstallFailed))
	assertNoTempDirs(t, root)
}

func TestUnknownExtensionIsSniffed(t *testing.T) {
	root := t.TempDir()
	srv := serveArchive(t, map[string][]byte{"/dl": buildTarGz(t, kafkaEntries)})
	inst := NewInstaller(root, time.Minute)

	a := kafkaArtifact(srv.URL + "/dl")
	a.Spec.Extension = "download"
	dir, err := inst.Install(context.Background(), a, false)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "config", "server.properties"))
}

func TestPlainTarIsDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, buildTar(t, kafkaEntries), 0644))

	format, compression, err := DetectFormat(path)
	require.NoError(t, err)
	require.Equal(t, FormatTar, format)
	require.Equal(t, utils.CompressionNone, compression)
}

func TestFormatFromExtension(t *testing.T) {
	cases := map[string]utils.Compression{
		"tar.gz":  utils.CompressionGzip,
		".tgz":    utils.CompressionGzip,
		"tar.xz":  utils.CompressionXZ,
		"tar.zst": utils.CompressionZstd,
		"tar":     utils.CompressionNone,
	}
	for ext, want := range cases {
		format, c, ok := FormatFromExtension(ext)
		require.True(t, ok, ext)
		require.Equal(t, FormatTar, format, ext)
		require.Equal(t, want, c, ext)
	}

	format, _, ok := FormatFromExtension("rpm")
	require.True(t, ok)
	require.Equal(t, FormatRpm, format)

	_, _, ok = FormatFromExtension("zip")
	require.False(t, ok)
}

func TestSignatureVerification(t *testing.T) {
	data := buildTarGz(t, kafkaEntries)

	entity, err := openpgp.NewEntity("Release Manager", "", "release@example.com", nil)
	require.NoError(t, err)

	var sig bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&sig, entity, bytes.NewReader(data), nil))

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	keyPath := filepath.Join(t.TempDir(), "KEYS")
	require.NoError(t, os.WriteFile(keyPath, pub.Bytes(), 0644))
	keyring, err := LoadKeyring(keyPath)
	require.NoError(t, err)

	srv := serveArchive(t, map[string][]byte{
		"/kafka.tgz":     data,
		"/kafka.tgz.asc": sig.Bytes(),
		"/other.tgz.asc": sig.Bytes(),
		"/other.tgz":     buildTarGz(t, []entry{{name: "x", body: "tampered"}}),
	})

	inst := NewInstaller(t.TempDir(), time.Minute, WithKeyring(keyring))
	a := kafkaArtifact(srv.URL + "/kafka.tgz")
	a.Spec.SignatureURL = srv.URL + "/kafka.tgz.asc"
	require.NoError(t, inst.EnsureCached(context.Background(), a))

	tampered := kafkaArtifact(srv.URL + "/other.tgz")
	tampered.ID = "other"
	tampered.Spec.SignatureURL = srv.URL + "/other.tgz.asc"
	err = inst.EnsureCached(context.Background(), tampered)
	require.True(t, models.IsType(err, models.ErrDownloadFailed))
	require.Equal(t, StateAbsent, inst.State(tampered))
}

func assertNoTempDirs(t *testing.T, root string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, ".extract-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

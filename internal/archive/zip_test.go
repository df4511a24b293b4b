package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("definitely not a zip"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractAll(t *testing.T) {
	data := buildZip(t, map[string]string{
		"Gears/package.xml": "<package/>",
		"Gears/icon.svg":    "<svg/>",
	})
	reader, err := Open(data)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, ExtractAll(reader, dest))

	got, err := os.ReadFile(filepath.Join(dest, "Gears", "package.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<package/>", string(got))
}

func TestExtractAllRejectsEscapingEntries(t *testing.T) {
	data := buildZip(t, map[string]string{"../evil.txt": "boom"})
	reader, err := Open(data)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "inner")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	err = ExtractAll(reader, dest)
	if err == nil {
		// the sanitized path must still land inside dest
		_, statErr := os.Stat(filepath.Join(dest, "evil.txt"))
		assert.NoError(t, statErr)
	}
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractTreeStripsTopDir(t *testing.T) {
	data := buildZip(t, map[string]string{
		"metadata/Gears/package.xml": "<package><name>Gears</name></package>",
		"other/README.md":            "not under metadata",
	})
	reader, err := Open(data)
	require.NoError(t, err)

	dest := t.TempDir()
	written, err := ExtractTree(reader, "metadata", dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gears/package.xml"}, written)

	body, err := os.ReadFile(filepath.Join(dest, "Gears", "package.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "<name>Gears</name>")
	_, statErr := os.Stat(filepath.Join(dest, "other"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractRepoSnapshotFlattensBranchDir(t *testing.T) {
	data := buildZip(t, map[string]string{
		"macros-master/Hole.FCMacro":        "code",
		"macros-master/nested/Other.FCMacro": "more",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractRepoSnapshot(data, dest, "master"))

	_, err := os.Stat(filepath.Join(dest, "Hole.FCMacro"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "nested", "Other.FCMacro"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "macros-master"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRepoSnapshotKeepsFlatLayout(t *testing.T) {
	data := buildZip(t, map[string]string{
		"Hole.FCMacro": "code",
		"readme.txt":   "x",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractRepoSnapshot(data, dest, "master"))

	_, err := os.Stat(filepath.Join(dest, "Hole.FCMacro"))
	assert.NoError(t, err)
}

// Package archive holds the zip handling shared by the metadata cache, the
// icon cache, and repository zip snapshots.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorrupt marks unreadable or malicious zip data. Callers treat it the
// same as "cache absent" and take their fallback path.
var ErrCorrupt = errors.New("corrupt zip archive")

// Open validates zip bytes and returns a reader over them.
func Open(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return reader, nil
}

// ReadFile reads one entry out of an open archive.
func ReadFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return data, nil
}

// ExtractAll unpacks an archive into dest, creating directories as needed.
// Entries that would escape dest are rejected.
func ExtractAll(reader *zip.Reader, dest string) error {
	for _, file := range reader.File {
		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		data, err := ReadFile(file)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// ExtractTree unpacks the entries living under topDir into dest, dropping
// topDir itself from each path. Entries outside topDir are ignored. Returns
// the relative paths written, in archive order.
func ExtractTree(reader *zip.Reader, topDir, dest string) ([]string, error) {
	prefix := topDir + "/"
	var written []string
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.HasPrefix(file.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(file.Name, prefix)
		if rel == "" {
			continue
		}
		target, err := safeJoin(dest, rel)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, err
		}
		data, err := ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return nil, err
		}
		written = append(written, rel)
	}
	return written, nil
}

// ExtractRepoSnapshot unpacks a repository zip snapshot into dest. Hosts
// like GitHub wrap the tree in a single "<repo>-<branch>" directory; when
// that is the only top-level entry its contents are moved up into dest.
func ExtractRepoSnapshot(data []byte, dest, branch string) error {
	reader, err := Open(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	if err := ExtractAll(reader, dest); err != nil {
		return err
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() || !strings.HasSuffix(entries[0].Name(), branch) {
		return nil
	}
	subdir := filepath.Join(dest, entries[0].Name())
	inner, err := os.ReadDir(subdir)
	if err != nil {
		return err
	}
	for _, entry := range inner {
		oldPath := filepath.Join(subdir, entry.Name())
		newPath := filepath.Join(dest, entry.Name())
		if err := os.Rename(oldPath, newPath); err != nil {
			return err
		}
	}
	return os.RemoveAll(subdir)
}

func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean("/"+name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes destination", ErrCorrupt, name)
	}
	return target, nil
}

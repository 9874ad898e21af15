package resolver

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resty.dev/v3"

	"github.com/vk/stagehand/internal/ctxlog"
)

// ArchiveFetcher downloads a gzipped tar source archive over HTTP and
// unpacks it under a work directory.
type ArchiveFetcher struct {
	client  *resty.Client
	workDir string
}

// NewArchiveFetcher creates a fetcher that unpacks into workDir.
func NewArchiveFetcher(workDir string) *ArchiveFetcher {
	return &ArchiveFetcher{
		client:  resty.New(),
		workDir: workDir,
	}
}

// Close releases the underlying HTTP client resources.
func (f *ArchiveFetcher) Close() error {
	return f.client.Close()
}

// Fetch implements the Fetcher interface. It returns the root of the
// unpacked source tree. Archives with a single top-level directory (the
// usual forge export layout) resolve to that directory.
func (f *ArchiveFetcher) Fetch(ctx context.Context, url string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Fetching source archive.", "url", url)

	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("failed to download %s: unexpected status %s", url, res.Status())
	}

	root, err := untar(res.Bytes(), f.workDir)
	if err != nil {
		return "", fmt.Errorf("failed to unpack archive from %s: %w", url, err)
	}

	logger.Debug("Source archive unpacked.", "root", root)
	return root, nil
}

// untar unpacks a gzipped tarball into destDir and returns the source root.
func untar(data []byte, destDir string) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("not a gzip archive: %w", err)
	}
	defer gz.Close()

	topLevel := make(map[string]struct{})
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("corrupt tar archive: %w", err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		// Refuse entries that would escape the destination directory.
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return "", fmt.Errorf("archive entry %q escapes the destination", hdr.Name)
		}
		topLevel[strings.SplitN(name, string(filepath.Separator), 2)[0]] = struct{}{}

		target := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0777)
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return "", err
			}
			if err := out.Close(); err != nil {
				return "", err
			}
		default:
			// Symlinks and the rest are not expected in source exports.
			continue
		}
	}

	if len(topLevel) == 1 {
		for dir := range topLevel {
			return filepath.Join(destDir, dir), nil
		}
	}
	return destDir, nil
}

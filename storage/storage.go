// Package storage archives processed images to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Archiver uploads a local file under key.
type Archiver interface {
	Archive(ctx context.Context, key, filePath string) error
}

// Key joins prefix and parts into an object key using forward slashes.
func Key(prefix string, parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		elems = append(elems, p)
	}
	for _, part := range parts {
		elems = append(elems, filepath.ToSlash(part))
	}
	return path.Join(elems...)
}

// ContentType sniffs the MIME type from the file contents, so a PNG stored
// as cat_without-bg.jpg is labelled image/png. Unreadable or unrecognized
// files fall back to the extension.
func ContentType(filePath string) string {
	if ct := sniff(filePath); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func sniff(filePath string) string {
	f, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ""
	}
	ct := http.DetectContentType(head[:n])
	if !strings.HasPrefix(ct, "image/") {
		return ""
	}
	return ct
}

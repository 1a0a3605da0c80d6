package eraser

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// FolderLayout formats the per-run folder name as DD-MM-YYYY_HH-MM-SS.
	FolderLayout = "02-01-2006_15-04-05"
	// OutputSuffix is appended to the base name of every processed image.
	OutputSuffix = "_without-bg"
	// OriginalsDir is the subfolder originals are moved into.
	OriginalsDir = "originals"
)

// SupportedExts are the extensions processed in batch mode, compared case-insensitively.
var SupportedExts = []string{".png", ".jpg", ".jpeg"}

// FolderName returns the run folder name for t.
func FolderName(t time.Time) string {
	return t.Format(FolderLayout)
}

// OutputName returns <name>_without-bg<ext> for the base name of file.
func OutputName(file string) string {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + OutputSuffix + ext
}

// IsSupported reports whether file has a supported image extension.
func IsSupported(file string) bool {
	return slices.Contains(SupportedExts, strings.ToLower(filepath.Ext(file)))
}

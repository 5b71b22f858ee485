// Package fileutils provides the file operations used by ingestion and the
// inbox watcher.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fjacquet/receipt-recon/internal/models"
)

// DocumentExtension is the extension of ingestible documents.
const DocumentExtension = ".pdf"

// FileExists checks if a file exists and is not a directory
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if !DirectoryExists(dirPath) {
		if err := os.MkdirAll(dirPath, models.PermissionDirectory); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// IsDocument reports whether path names an ingestible document.
func IsDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), DocumentExtension)
}

// ListDocuments returns the documents directly inside dirPath, sorted by
// name. Subdirectories are not descended into.
func ListDocuments(dirPath string) ([]string, error) {
	if !DirectoryExists(dirPath) {
		return nil, fmt.Errorf("directory does not exist: %s", dirPath)
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsDocument(e.Name()) {
			files = append(files, filepath.Join(dirPath, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadDocument loads path as a RawDocument. The file name becomes the
// message id and the modification time the arrival time.
func ReadDocument(path, source string) (models.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("file does not exist: %s", path)
	}
	if info.IsDir() {
		return models.RawDocument{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to read file: %w", err)
	}
	return models.NewRawDocument(data, filepath.Base(path), info.ModTime(), source), nil
}

// MoveFile moves src into dstDir, creating it if needed. An existing file
// of the same name is not overwritten; a numeric suffix is added instead.
// It returns the new path.
func MoveFile(src, dstDir string) (string, error) {
	if err := EnsureDirectoryExists(dstDir); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dst := filepath.Join(dstDir, base)
	for i := 1; FileExists(dst); i++ {
		dst = filepath.Join(dstDir, stem+"-"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}
	return dst, nil
}

// Stable reports whether path has not been modified for at least settle,
// which is how the watcher decides a copy into the inbox has finished.
func Stable(path string, settle time.Duration, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) >= settle
}

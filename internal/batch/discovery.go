package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultIncludePatterns matches the document formats internal/raster
// accepts: PDFs and the plain raster image formats it decodes directly.
var DefaultIncludePatterns = []string{"*.pdf", "*.png", "*.jpg", "*.jpeg", "*.tif", "*.tiff", "*.bmp"}

// discoverDocumentFiles expands a mix of file and directory arguments into
// a flat list of document paths matching includePatterns and not matching
// excludePatterns.
func discoverDocumentFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			files = append(files, arg)
		}
	}

	return files, nil
}

// discoverInDirectory walks dir, collecting files that should be included.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.Walk(dir, walkFn)
}

// shouldIncludeFile reports whether path matches includePatterns and does
// not match excludePatterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	return matchesAnyPattern(path, includePatterns) && !matchesAnyPattern(path, excludePatterns)
}

// matchesAnyPattern reports whether path's base name matches any of
// patterns. An empty pattern list never matches.
func matchesAnyPattern(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Package fileutil expands command-line arguments into the notebook files
// they name. Directories are searched recursively; hidden directories such
// as .ipynb_checkpoints are never entered.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NotebookExt is the extension of Jupyter notebook files.
const NotebookExt = ".ipynb"

// DefaultExcludeDirs are directory names skipped when searching for notebooks.
var DefaultExcludeDirs = []string{"node_modules", "__pycache__", "site-packages", "venv"}

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Extensions is a list of file extensions to include (case-insensitive)
	Extensions []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs is a list of directory names to skip
	ExcludeDirs []string
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files are the matched paths, sorted, each prefixed with the scanned dir
	Files []string
	// Errors are the non-fatal errors met while walking
	Errors []error
}

// ScanDirectory scans dir for files matching opts. Unreadable entries are
// collected in ScanResult.Errors and the walk continues.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	extMap := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}
	excludeMap := make(map[string]bool, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	result := &ScanResult{Files: []string{}}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if !opts.Recursive || excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		result.Files = append(result.Files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

// ExpandNotebooks turns arguments into notebook paths. Files are taken as
// given; directories contribute every notebook below them. Duplicates are
// dropped, keeping the first occurrence. A directory without notebooks is
// an error. The second return value holds non-fatal scan errors.
func ExpandNotebooks(args []string) ([]string, []error, error) {
	var (
		files    []string
		warnings []error
		seen     = make(map[string]bool)
	)
	add := func(path string) {
		key := filepath.Clean(path)
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if !seen[key] {
			seen[key] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, warnings, fmt.Errorf("failed to access %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		result, err := ScanDirectory(arg, ScanOptions{
			Extensions:  []string{NotebookExt},
			Recursive:   true,
			ExcludeDirs: DefaultExcludeDirs,
		})
		if err != nil {
			return nil, warnings, err
		}
		warnings = append(warnings, result.Errors...)
		if len(result.Files) == 0 {
			return nil, warnings, fmt.Errorf("no notebooks found in %s", arg)
		}
		for _, f := range result.Files {
			add(f)
		}
	}
	return files, warnings, nil
}

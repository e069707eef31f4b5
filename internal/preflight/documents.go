package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/reportrag/internal/index"
)

// CheckDocuments checks that the documents directory exists and counts the
// report files the index builder would read.
func (c *Checker) CheckDocuments(dir string) CheckResult {
	result := CheckResult{
		Name:     "documents",
		Required: true,
		Details:  dir,
	}

	info, err := os.Stat(dir)
	if err != nil {
		result.Status = StatusFail
		if os.IsNotExist(err) {
			result.Message = "directory not found (set paths.documents in .reportrag.yaml)"
		} else {
			result.Message = fmt.Sprintf("cannot access directory: %v", err)
		}
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = "not a directory"
		return result
	}

	n := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && index.IsSupported(d.Name()) {
			n++
		}
		return nil
	})

	if n == 0 {
		result.Status = StatusWarn
		result.Message = "no report files (.txt, .md, .json)"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d report files", n)
	return result
}

// Package fs walks mounted volumes and produces scan reports.
package fs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// SurveyResult is the recursive size and file count of one folder.
// Skipped counts sub-entries that could not be read.
type SurveyResult struct {
	SizeBytes int64
	FileCount int64
	Skipped   int
}

// Survey sums the sizes of every regular file below path. Symlinks are not
// followed. Unreadable directories and files are skipped and counted; Survey
// never fails.
func Survey(path string) SurveyResult {
	var result SurveyResult
	walk(path, &result)
	return result
}

func walk(dir string, result *SurveyResult) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Skipped++
		return
	}
	for _, entry := range entries {
		switch {
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				result.Skipped++
				continue
			}
			result.SizeBytes += info.Size()
			result.FileCount++
		case entry.IsDir():
			walk(filepath.Join(dir, entry.Name()), result)
		case entry.Type()&fs.ModeSymlink != 0:
			// not followed
		}
	}
}

package pipeline

import (
	"path/filepath"
	"strings"
	"time"
)

const processedMarker = "_Processed_"

// OutputName names a processed copy of fileName:
// <name>_Processed_<yyyymmdd_hhmmss>.docx.
func OutputName(fileName string, at time.Time) string {
	base := filepath.Base(fileName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + processedMarker + at.Format("20060102_150405") + ".docx"
}

// IsDocx reports whether name has a .docx extension.
func IsDocx(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".docx")
}

// Processable reports whether a file found in a batch directory should be
// processed: a .docx that is neither a Word lock file nor a previous output.
func Processable(name string) bool {
	base := filepath.Base(name)
	return IsDocx(base) && !strings.HasPrefix(base, "~$") && !strings.Contains(base, processedMarker)
}

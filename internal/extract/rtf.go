package extract

import (
	"fmt"
	"os"

	"github.com/lu4p/cat"
)

func extractRTFFile(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return text, nil
}

// extractRTF spools content to a temporary file because cat detects the
// format from a file on disk.
func extractRTF(content []byte) (string, error) {
	f, err := os.CreateTemp("", "kensaku-*.rtf")
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return extractRTFFile(f.Name())
}

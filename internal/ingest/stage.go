package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// stageThroughTempFile writes the fetched document to a fresh temp file and
// reads it back. The file is removed before returning on every path.
func stageThroughTempFile(dir string, body []byte, logger *log.Logger) ([]byte, error) {
	f, err := os.CreateTemp(dir, "offers-*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Printf("failed to remove temporary file %s: %v", path, err)
		}
	}()

	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	logger.Printf("data saved to temporary file: %s", path)

	staged, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read temp file: %w", err)
	}
	if !json.Valid(staged) {
		return nil, newError(KindParse, "staged document %s is not valid JSON", path)
	}
	return staged, nil
}

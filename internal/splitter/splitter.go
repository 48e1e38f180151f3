package splitter

import (
	"fmt"
	"strings"
)

// Default windowing policy used by the ingestion pipeline.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Split cuts text into overlapping fixed-size windows. Each window covers
// [start, start+chunkSize) in characters, is trimmed of surrounding
// whitespace, and the start advances by chunkSize-overlap. Whitespace-only
// windows are dropped. The output is deterministic for a given input, which
// keeps chunk identity stable across re-ingestion runs.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("splitter: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("splitter: overlap must be in [0, %d), got %d", chunkSize, overlap)
	}

	runes := []rune(text)
	step := chunkSize - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

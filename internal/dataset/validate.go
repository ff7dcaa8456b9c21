package dataset

import (
	"fmt"
	"os"
)

// ValidationResult summarizes a dataset admission check.
type ValidationResult struct {
	ClipCount    int
	MissingClips []string
	EmptyTexts   []string
}

// OK reports whether the dataset is internally consistent.
func (r ValidationResult) OK() bool {
	return len(r.MissingClips) == 0 && len(r.EmptyTexts) == 0
}

// Validate cross-checks the manifest against the wav directory: every entry
// must reference an existing clip and carry non-empty text.
func Validate(wavDir string, entries []Entry) ValidationResult {
	result := ValidationResult{ClipCount: len(entries)}
	for _, entry := range entries {
		if entry.Text == "" {
			result.EmptyTexts = append(result.EmptyTexts, entry.ID)
		}
		if _, err := os.Stat(entry.WavPath(wavDir)); err != nil {
			result.MissingClips = append(result.MissingClips, entry.ID)
		}
	}
	return result
}

// Err renders the validation problems as a single error, or nil when OK.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	if len(r.MissingClips) > 0 {
		return fmt.Errorf("manifest references %d missing clips (first: %s)",
			len(r.MissingClips), r.MissingClips[0])
	}
	return fmt.Errorf("%d manifest entries have empty transcripts (first: %s)",
		len(r.EmptyTexts), r.EmptyTexts[0])
}

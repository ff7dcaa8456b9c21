package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"lukechampine.com/blake3"
)

// ManifestName is the transcript manifest filename inside the clips dir.
const ManifestName = "metadata.csv"

// Layout describes the working tree for one voice build.
//
//	<staging>/voice-<id>/
//	  source/     downloaded or copied source audio
//	  clips/
//	    wav/          final 22050 Hz mono clips
//	    metadata.csv  pipe-delimited transcript manifest
//	  training/   trainer run directory with checkpoints
//	  export/     staged ONNX artifacts before publication
type Layout struct {
	Root string
}

// NewLayout places the working tree for a queue item under stagingRoot.
func NewLayout(stagingRoot string, itemID int64) Layout {
	return Layout{Root: filepath.Join(stagingRoot, fmt.Sprintf("voice-%d", itemID))}
}

func (l Layout) SourceDir() string { return filepath.Join(l.Root, "source") }

func (l Layout) ClipsDir() string { return filepath.Join(l.Root, "clips") }

func (l Layout) WavDir() string { return filepath.Join(l.ClipsDir(), "wav") }

func (l Layout) ManifestPath() string { return filepath.Join(l.ClipsDir(), ManifestName) }

func (l Layout) TrainingDir() string { return filepath.Join(l.Root, "training") }

func (l Layout) ExportDir() string { return filepath.Join(l.Root, "export") }

// EnsureTree creates every directory in the layout.
func (l Layout) EnsureTree() error {
	for _, dir := range []string{l.SourceDir(), l.WavDir(), l.TrainingDir(), l.ExportDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dataset directory %s: %w", dir, err)
		}
	}
	return nil
}

// Entry is one transcript manifest line: a clip ID and its text.
type Entry struct {
	ID   string
	Text string
}

// WavPath returns the clip file an entry refers to.
func (e Entry) WavPath(wavDir string) string {
	return filepath.Join(wavDir, e.ID+".wav")
}

// WriteManifest writes entries in the pipe-delimited id|text format the
// trainer consumes. Text is sanitized so the delimiter stays unambiguous.
func WriteManifest(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if _, err := fmt.Fprintf(w, "%s|%s\n", entry.ID, SanitizeText(entry.Text)); err != nil {
			f.Close()
			return fmt.Errorf("write manifest entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush manifest: %w", err)
	}
	return f.Close()
}

// ReadManifest parses a pipe-delimited transcript manifest.
func ReadManifest(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, transcript, found := strings.Cut(text, "|")
		if !found {
			return nil, fmt.Errorf("manifest %s line %d: missing delimiter", path, line)
		}
		entries = append(entries, Entry{ID: strings.TrimSpace(id), Text: strings.TrimSpace(transcript)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return entries, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeText makes transcript text safe for the pipe-delimited manifest:
// delimiters and line breaks are removed and whitespace is collapsed.
func SanitizeText(text string) string {
	text = strings.ReplaceAll(text, "|", " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ClipID builds a stable clip identifier from the voice slug, the clip's
// sequence number, and a short content digest of the wav file. The digest
// keeps IDs unique even when builds are re-run with different segmentation.
func ClipID(voice string, seq int, wavPath string) (string, error) {
	digest, err := hashFile(wavPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%04d_%s", VoiceSlug(voice), seq, digest[:8]), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open clip %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash clip %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// VoiceSlug normalizes a voice name into a filesystem and manifest safe slug.
func VoiceSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalid.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "voice"
	}
	return slug
}

// DisplayName renders a voice slug as a human-facing name. A fresh Caser is
// built per call; Caser values are stateful and not safe for shared use.
func DisplayName(name string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(VoiceSlug(name))
	return cases.Title(language.English).String(cleaned)
}

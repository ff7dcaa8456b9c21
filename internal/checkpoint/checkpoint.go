package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoCheckpoints indicates the directory holds no usable checkpoint files.
var ErrNoCheckpoints = errors.New("no checkpoints found")

// Checkpoint is one saved training state parsed from its filename.
type Checkpoint struct {
	Path  string
	Epoch int64
	Step  int64
}

// Trainer checkpoints are named epoch=<E>-step=<S>.ckpt.
var namePattern = regexp.MustCompile(`^epoch=(\d+)-step=(\d+)\.ckpt$`)

// Parse extracts epoch and step from a checkpoint file path. It returns
// false for names that do not follow the trainer's naming convention.
func Parse(path string) (Checkpoint, bool) {
	base := filepath.Base(path)
	match := namePattern.FindStringSubmatch(base)
	if match == nil {
		return Checkpoint{}, false
	}
	epoch, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Checkpoint{}, false
	}
	step, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return Checkpoint{}, false
	}
	return Checkpoint{Path: path, Epoch: epoch, Step: step}, true
}

// List returns every checkpoint under dir, sorted ascending by (epoch, step).
// Hidden files and AppleDouble metadata copies are skipped so a run directory
// synced from macOS or a network share does not yield phantom checkpoints.
func List(dir string) ([]Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory %s: %w", dir, err)
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ckpt, ok := Parse(filepath.Join(dir, name))
		if !ok {
			continue
		}
		checkpoints = append(checkpoints, ckpt)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		if checkpoints[i].Epoch != checkpoints[j].Epoch {
			return checkpoints[i].Epoch < checkpoints[j].Epoch
		}
		return checkpoints[i].Step < checkpoints[j].Step
	})
	return checkpoints, nil
}

// Latest returns the checkpoint with the highest (epoch, step) in dir.
// Ordering is numeric, so epoch=100 beats epoch=99 even though it sorts
// earlier lexically.
func Latest(dir string) (Checkpoint, error) {
	checkpoints, err := List(dir)
	if err != nil {
		return Checkpoint{}, err
	}
	if len(checkpoints) == 0 {
		return Checkpoint{}, fmt.Errorf("%w in %s", ErrNoCheckpoints, dir)
	}
	return checkpoints[len(checkpoints)-1], nil
}

package display

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agiledash/internal/convert"
	"agiledash/internal/fsutil"
	appLog "agiledash/internal/log"
)

// PNGWriter writes each frame to display_output_<timestamp>.png, or to a
// single fixed file in snapshot mode.
type PNGWriter struct {
	mu       sync.Mutex
	dir      string
	fixed    string
	rotation int
	now      func() time.Time
}

// NewPNGWriter creates dir if needed.
func NewPNGWriter(dir string, rotation int) (*PNGWriter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("display: create output dir: %w", err)
	}
	return &PNGWriter{dir: dir, rotation: rotation, now: time.Now}, nil
}

// NewSnapshotWriter writes every frame to path, replacing the previous one.
// Snapshots are never rotated.
func NewSnapshotWriter(path string) (*PNGWriter, error) {
	w, err := NewPNGWriter(filepath.Dir(path), 0)
	if err != nil {
		return nil, err
	}
	w.fixed = filepath.Base(path)
	return w, nil
}

// FileName is the output name for a frame presented at t.
func FileName(t time.Time) string {
	return "display_output_" + t.Format("20060102_150405") + ".png"
}

func (w *PNGWriter) Present(img *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame, err := convert.Orient(img, w.rotation)
	if err != nil {
		return err
	}
	data, err := convert.EncodePNG(frame)
	if err != nil {
		return err
	}

	name := w.fixed
	if name == "" {
		name = FileName(w.now())
	}
	path := filepath.Join(w.dir, name)
	if err := fsutil.WriteFileAtomic(path, ".frame-*.png", data); err != nil {
		return fmt.Errorf("display: write %s: %w", path, err)
	}
	appLog.Debug("frame written", "path", path, "bytes", len(data))
	return nil
}

func (w *PNGWriter) Close() error { return nil }

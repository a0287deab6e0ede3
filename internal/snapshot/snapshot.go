// Package snapshot executes the image side effects the engine only
// decides about: face crops saved at enrollment and per-window frame
// screenshots. Directory layout follows the kiosk convention:
//
//	<base>/img/<unix>.jpg
//	<base>/screenshots/morning/<name>_<stamp>.jpg
//	<base>/screenshots/afternoon/<name>_<stamp>.jpg
package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/normalize"
	"github.com/kozaktomas/face-attendance/internal/window"
)

// jpegQuality for saved crops and screenshots.
const jpegQuality = 90

// dupThreshold is the dHash Hamming distance under which a screenshot is
// considered a duplicate of the previous one in the same window.
const dupThreshold = 6

// Saver writes face crops and screenshots under a base directory.
type Saver struct {
	baseDir string

	mu       sync.Mutex
	lastHash map[window.Window]uint64
}

// NewSaver creates the directory layout under baseDir.
func NewSaver(baseDir string) (*Saver, error) {
	for _, dir := range []string{
		filepath.Join(baseDir, "img"),
		filepath.Join(baseDir, "screenshots", window.Morning.String()),
		filepath.Join(baseDir, "screenshots", window.Afternoon.String()),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory %s: %w", dir, err)
		}
	}
	return &Saver{
		baseDir:  baseDir,
		lastHash: make(map[window.Window]uint64),
	}, nil
}

// SaveFaceCrop decodes the frame, crops the bounding box and writes the
// crop as the enrollment image. Returns the file path. A nil or invalid
// bbox saves the whole frame.
func (s *Saver) SaveFaceCrop(frame []byte, bbox []float64, ts time.Time) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	out := img
	if r, ok := cropRect(img.Bounds(), bbox); ok {
		if sub, ok := img.(interface {
			SubImage(image.Rectangle) image.Image
		}); ok {
			out = sub.SubImage(r)
		}
	}

	path := filepath.Join(s.baseDir, "img", fmt.Sprintf("%d.jpg", ts.Unix()))
	if err := writeJPEG(path, out); err != nil {
		return "", err
	}
	return path, nil
}

// SaveScreenshot writes the frame into the window's screenshot folder,
// named after the recognized person. Near-duplicates of the previous
// screenshot in the same window are skipped; the empty path return means
// skipped, not failed.
func (s *Saver) SaveScreenshot(frame []byte, w window.Window, name string, ts time.Time) (string, error) {
	if w == window.NoWindow {
		return "", nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	hash := fingerprint.DHashImage(img)
	s.mu.Lock()
	last, seen := s.lastHash[w]
	if seen && fingerprint.Similar(hash, last, dupThreshold) {
		s.mu.Unlock()
		return "", nil
	}
	s.lastHash[w] = hash
	s.mu.Unlock()

	filename := fmt.Sprintf("%s_%s.jpg", normalize.Filename(name), ts.Format("20060102150405"))
	path := filepath.Join(s.baseDir, "screenshots", w.String(), filename)
	if err := writeJPEG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// cropRect converts a [x1, y1, x2, y2] bbox to a rectangle clamped to the
// image bounds. Returns false for anything degenerate.
func cropRect(bounds image.Rectangle, bbox []float64) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}
	r := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

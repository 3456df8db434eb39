package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
)

// Open builds the Driver selected by CAMERA_DRIVER and wraps it in a Guard.
func Open(cfg *config.Config) (*Guard, error) {
	var (
		driver Driver
		err    error
	)
	switch cfg.CameraDriver {
	case "synthetic":
		driver = NewSynthetic(cfg.CameraWidth, cfg.CameraHeight)
	case "snapshot":
		driver, err = NewSnapshot(cfg.CameraSnapshotURL, cfg.CameraStillURL, cfg.ImageFetchTimeout)
	case "directory":
		driver, err = NewDirectory(cfg.CameraDir)
	default:
		err = fmt.Errorf("unknown camera driver %q", cfg.CameraDriver)
	}
	if err != nil {
		return nil, err
	}
	return NewGuard(cfg.CameraDriver, driver), nil
}

// =============================================================================
// Synthetic
// =============================================================================

// Synthetic renders a moving test pattern. Used in development and CI where
// no sensor is attached.
type Synthetic struct {
	width  int
	height int
	seq    int
}

func NewSynthetic(width, height int) *Synthetic {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	return &Synthetic{width: width, height: height}
}

func (s *Synthetic) GetFrame() ([]byte, error) {
	s.seq++
	return s.render(s.width, s.height, 75)
}

func (s *Synthetic) CaptureHighRes() ([]byte, error) {
	s.seq++
	return s.render(s.width*2, s.height*2, 92)
}

func (s *Synthetic) Close() error { return nil }

func (s *Synthetic) render(w, h, quality int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bar := (s.seq * 8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 96, A: 255}
			if x >= bar && x < bar+16 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode test pattern: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot pulls JPEG stills over HTTP from a camera daemon running next to
// the sensor (libcamera/mjpeg services expose a /snapshot style endpoint).
type Snapshot struct {
	previewURL string
	stillURL   string
	httpClient *http.Client
}

func NewSnapshot(previewURL, stillURL string, timeout time.Duration) (*Snapshot, error) {
	if previewURL == "" {
		return nil, errors.New("CAMERA_SNAPSHOT_URL is required for the snapshot driver")
	}
	if stillURL == "" {
		stillURL = previewURL
	}
	return &Snapshot{
		previewURL: previewURL,
		stillURL:   stillURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *Snapshot) GetFrame() ([]byte, error) { return s.fetch(s.previewURL) }

func (s *Snapshot) CaptureHighRes() ([]byte, error) { return s.fetch(s.stillURL) }

func (s *Snapshot) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Snapshot) fetch(url string) ([]byte, error) {
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

// =============================================================================
// Directory
// =============================================================================

// Directory replays *.jpg files from a folder in name order, looping.
type Directory struct {
	files []string
	next  int
}

func NewDirectory(dir string) (*Directory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read camera dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || !(strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg")) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no jpeg files in %s", dir)
	}
	sort.Strings(files)
	return &Directory{files: files}, nil
}

func (d *Directory) GetFrame() ([]byte, error) {
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	return os.ReadFile(path)
}

func (d *Directory) CaptureHighRes() ([]byte, error) { return d.GetFrame() }

func (d *Directory) Close() error { return nil }

package handlers

import (
	"bufio"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	streamBoundary   = "frame"
	maxStreamBackoff = 2 * time.Second
)

// FrameStream is the part of the camera guard the preview stream needs.
type FrameStream interface {
	GetFrame() ([]byte, error)
	Closed() bool
}

type StreamHandler struct {
	camera   FrameStream
	interval time.Duration
	sleep    func(time.Duration)
}

// NewStreamHandler caps the preview at fps frames per second.
func NewStreamHandler(camera FrameStream, fps float64) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{
		camera:   camera,
		interval: time.Duration(float64(time.Second) / fps),
		sleep:    time.Sleep,
	}
}

// VideoFeed serves a multipart/x-mixed-replace JPEG stream until the client
// disconnects or the camera is closed.
func (h *StreamHandler) VideoFeed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+streamBoundary)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.stream(w)
	})
	return nil
}

func (h *StreamHandler) stream(w *bufio.Writer) {
	backoff := h.interval
	var (
		failures int
		last     []byte
	)
	sent := 0

	for !h.camera.Closed() {
		start := time.Now()
		frame, err := h.camera.GetFrame()
		if err != nil {
			if h.camera.Closed() {
				break
			}
			failures++
			if failures == 1 || failures%100 == 0 {
				slog.Warn("video stream frame skipped", "action", "video_feed", "failures", failures, "error", err)
			}
			h.sleep(backoff)
			backoff = min(backoff*2, maxStreamBackoff)
			// Writing is the only way to notice the client has gone.
			if err := writeKeepAlive(w, last); err != nil {
				slog.Info("video stream client disconnected", "frames", sent)
				return
			}
			continue
		}
		failures = 0
		backoff = h.interval
		last = frame

		if err := writeFramePart(w, frame); err != nil {
			slog.Info("video stream client disconnected", "frames", sent)
			return
		}
		sent++

		if wait := h.interval - time.Since(start); wait > 0 {
			h.sleep(wait)
		}
	}
	slog.Info("video stream ended, camera closed", "frames", sent)
}

func writeFramePart(w *bufio.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// writeKeepAlive repeats the last frame, or sends an empty part before the
// first one.
func writeKeepAlive(w *bufio.Writer, last []byte) error {
	if last != nil {
		return writeFramePart(w, last)
	}
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: text/plain\r\nContent-Length: 0\r\n\r\n\r\n", streamBoundary); err != nil {
		return err
	}
	return w.Flush()
}

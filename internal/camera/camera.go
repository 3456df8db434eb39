// Package camera owns the single process-wide camera handle.
//
// The sensor library itself lives outside this service; a Driver adapts it.
// Callers never see the Driver. They go through a Guard, which serializes
// every hardware access so a live video stream and a capture request cannot
// interleave reads against the same handle.
package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var ErrCameraUnavailable = errors.New("camera unavailable")

// Driver is the contract a camera backend must satisfy. Implementations may
// assume calls are never concurrent.
type Driver interface {
	// GetFrame returns one JPEG-encoded preview frame.
	GetFrame() ([]byte, error)
	// CaptureHighRes switches to still mode, grabs one JPEG and switches back.
	CaptureHighRes() ([]byte, error)
	Close() error
}

// Stats is a snapshot of guard counters.
type Stats struct {
	Driver         string `json:"driver"`
	FramesServed   uint64 `json:"frames_served"`
	StillsCaptured uint64 `json:"stills_captured"`
	Failures       uint64 `json:"failures"`
	Closed         bool   `json:"closed"`
}

// Guard serializes access to a Driver.
type Guard struct {
	name   string
	mu     sync.Mutex
	driver Driver
	closed bool

	framesServed   atomic.Uint64
	stillsCaptured atomic.Uint64
	failures       atomic.Uint64
}

func NewGuard(name string, driver Driver) *Guard {
	return &Guard{name: name, driver: driver}
}

// GetFrame acquires one preview frame inside the critical section.
func (g *Guard) GetFrame() ([]byte, error) {
	frame, err := g.acquire(g.driver.GetFrame)
	if err != nil {
		return nil, err
	}
	g.framesServed.Add(1)
	return frame, nil
}

// CaptureHighRes acquires one still frame inside the critical section.
func (g *Guard) CaptureHighRes() ([]byte, error) {
	frame, err := g.acquire(g.driver.CaptureHighRes)
	if err != nil {
		return nil, err
	}
	g.stillsCaptured.Add(1)
	return frame, nil
}

func (g *Guard) acquire(grab func() ([]byte, error)) ([]byte, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrCameraUnavailable
	}
	frame, err := grab()
	g.mu.Unlock()

	if err != nil {
		g.failures.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if len(frame) == 0 {
		g.failures.Add(1)
		return nil, ErrCameraUnavailable
	}
	return frame, nil
}

// Closed reports whether Close has been called. Stream loops poll it to stop.
func (g *Guard) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close releases the driver. Safe to call more than once.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.driver.Close(); err != nil {
		slog.Error("camera close failed", "driver", g.name, "error", err)
		return err
	}
	return nil
}

func (g *Guard) Stats() Stats {
	return Stats{
		Driver:         g.name,
		FramesServed:   g.framesServed.Load(),
		StillsCaptured: g.stillsCaptured.Load(),
		Failures:       g.failures.Load(),
		Closed:         g.Closed(),
	}
}

package camera

import (
	"bytes"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDriver counts how many goroutines are inside the driver at once.
type countingDriver struct {
	holders    atomic.Int32
	maxHolders atomic.Int32
	calls      atomic.Int32
	frame      []byte
	err        error
}

func (p *countingDriver) enter() {
	n := p.holders.Add(1)
	for {
		max := p.maxHolders.Load()
		if n <= max || p.maxHolders.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	p.holders.Add(-1)
	p.calls.Add(1)
}

func (p *countingDriver) GetFrame() ([]byte, error) {
	p.enter()
	return p.frame, p.err
}

func (p *countingDriver) CaptureHighRes() ([]byte, error) {
	p.enter()
	return p.frame, p.err
}

func (p *countingDriver) Close() error { return nil }

func TestGuard_MaxOneHolder(t *testing.T) {
	driver := &countingDriver{frame: []byte{0xff, 0xd8, 0xff}}
	guard := NewGuard("counting", driver)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = guard.GetFrame()
			} else {
				_, err = guard.CaptureHighRes()
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), driver.maxHolders.Load(), "driver must never be entered concurrently")
	assert.Equal(t, int32(32), driver.calls.Load())

	stats := guard.Stats()
	assert.Equal(t, uint64(16), stats.FramesServed)
	assert.Equal(t, uint64(16), stats.StillsCaptured)
}

func TestGuard_EmptyFrameIsUnavailable(t *testing.T) {
	guard := NewGuard("counting", &countingDriver{})

	_, err := guard.GetFrame()
	require.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Equal(t, uint64(1), guard.Stats().Failures)
}

func TestGuard_DriverErrorIsUnavailable(t *testing.T) {
	guard := NewGuard("counting", &countingDriver{err: errors.New("sensor timeout")})

	_, err := guard.CaptureHighRes()
	require.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Contains(t, err.Error(), "sensor timeout")
}

func TestGuard_ClosedRejectsAndIsIdempotent(t *testing.T) {
	driver := &countingDriver{frame: []byte{1}}
	guard := NewGuard("counting", driver)

	require.NoError(t, guard.Close())
	require.NoError(t, guard.Close())
	assert.True(t, guard.Closed())

	_, err := guard.GetFrame()
	require.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Equal(t, int32(0), driver.calls.Load())
}

func TestSynthetic_ProducesDecodableJPEG(t *testing.T) {
	s := NewSynthetic(64, 48)

	frame, err := s.GetFrame()
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)

	still, err := s.CaptureHighRes()
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(still))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Width)
}

func TestDirectory_LoopsInNameOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("B"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	d, err := NewDirectory(dir)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		frame, err := d.GetFrame()
		require.NoError(t, err)
		got = append(got, string(frame))
	}
	assert.Equal(t, []string{"A", "B", "A"}, got)
}

func TestDirectory_EmptyDirFails(t *testing.T) {
	_, err := NewDirectory(t.TempDir())
	require.Error(t, err)
}

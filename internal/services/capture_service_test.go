package services

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCapture_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")

	first, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)
	second, err := e.captures.Capture(ctx, doctorT1, p.ID, "Tobillo")
	require.NoError(t, err)

	assert.True(t, first.Synced)

	detail, err := e.patients.Detail(ctx, doctorT1, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Captures, 2)
	assert.Equal(t, second.CaptureID, detail.Captures[0].ID, "newest capture first")
	assert.Equal(t, first.CaptureID, detail.Captures[1].ID)
	assert.Equal(t, "u-doc1", detail.Captures[1].CreatedBy)
	assert.Regexp(t, `^patients/`+p.ID+`/Rodilla/2024-03-01_10-00-01_[0-9a-f]{8}\.jpg$`, detail.Captures[1].StoragePath)
	assert.Equal(t, e.blobs.URL(detail.Captures[1].StoragePath), first.CloudURL)

	data, ok := e.blobs.Bytes(detail.Captures[1].StoragePath)
	require.True(t, ok)
	assert.Equal(t, e.camera.frame, data, "cloud url resolves to the exact captured bytes")

	assert.Contains(t, e.cache.captures, first.CaptureID)
	assert.Empty(t, tempFiles(t, e.cfg.CaptureTempDir), "temp files are removed")
}

func TestCapture_NonDoctorHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")

	_, err := e.captures.Capture(ctx, secretariaT1, p.ID, "Rodilla")
	require.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, 0, e.camera.Calls())
	assert.Equal(t, 0, e.blobs.Writes())
	assert.Equal(t, 0, e.store.Count(remote.Captures))
	assert.Empty(t, tempFiles(t, e.cfg.CaptureTempDir))
}

func TestCapture_CameraReturnsNoFrame(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	e.camera.frame = nil

	_, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.ErrorIs(t, err, ErrCameraUnavailable)

	assert.Equal(t, 0, e.blobs.Writes(), "zero blob writes")
	assert.Equal(t, 0, e.store.Count(remote.Captures), "zero metadata writes")
	assert.Empty(t, tempFiles(t, e.cfg.CaptureTempDir))
}

func TestCapture_UploadFailureLeavesNoMetadata(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	e.blobs.failPut = true

	_, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	assert.Equal(t, 0, e.store.Count(remote.Captures))
	assert.Empty(t, e.cache.captures)
	assert.Empty(t, tempFiles(t, e.cfg.CaptureTempDir), "temp file removed even when upload fails")
}

func TestCapture_MetadataFailureIsNotSurfaced(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	e.store.failCreate[remote.Captures] = true

	res, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.Empty(t, res.CaptureID)
	assert.NotEmpty(t, res.CloudURL)
	assert.Equal(t, 1, e.blobs.Writes())
}

func TestCapture_CacheFailureIsNotSurfaced(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	e.cache.err = errInjected

	res, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.NotEmpty(t, res.CaptureID)
	assert.Equal(t, 1, e.store.Count(remote.Captures))
}

func TestCapture_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")

	for _, area := range []string{"", "  ", "../etc", "a/b", ".."} {
		_, err := e.captures.Capture(ctx, doctorT1, p.ID, area)
		assert.ErrorIs(t, err, ErrInvalidInput, "study area %q", area)
	}
	_, err := e.captures.Capture(ctx, doctorT1, "missing", "Rodilla")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	_, err = e.captures.Capture(ctx, doctorT2, p.ID, "Rodilla")
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
	assert.Equal(t, 0, e.camera.Calls())
}

func TestRemoveTemp_Idempotent(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.cfg.CaptureTempDir, "capture_2024-03-01_10-00-00.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, e.captures.RemoveTemp(path))
	require.NoError(t, e.captures.RemoveTemp(path))
	require.NoError(t, e.captures.RemoveTemp(""))
}

func TestDeleteCapture(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	res, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)

	require.ErrorIs(t, e.captures.Delete(ctx, secretariaT1, res.CaptureID), ErrForbidden)
	require.ErrorIs(t, e.captures.Delete(ctx, doctorT2, res.CaptureID), ErrNotFoundOrForbidden)

	require.NoError(t, e.captures.Delete(ctx, doctorT1, res.CaptureID))
	assert.Equal(t, 0, e.store.Count(remote.Captures))
	assert.NotContains(t, e.cache.captures, res.CaptureID)
	paths, err := e.blobs.List(ctx, "patients/")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.ErrorIs(t, e.captures.Delete(ctx, doctorT1, res.CaptureID), ErrNotFoundOrForbidden)
}

func TestCapture_SameSecondCapturesKeepTheirBlobs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	frozen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	e.captures.now = func() time.Time { return frozen }

	first, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)
	second, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)

	var a, b remote.Capture
	require.NoError(t, e.store.Get(ctx, remote.Captures, first.CaptureID, &a))
	require.NoError(t, e.store.Get(ctx, remote.Captures, second.CaptureID, &b))
	require.NotEqual(t, a.StoragePath, b.StoragePath)
	assert.Equal(t, a.Timestamp, b.Timestamp)

	require.NoError(t, e.captures.Delete(ctx, doctorT1, first.CaptureID))
	_, ok := e.blobs.Bytes(b.StoragePath)
	assert.True(t, ok, "deleting one capture leaves the other's image")
}

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestSaveAnnotation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	res, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)

	req := &dto.AnnotationRequest{
		ImageData:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG),
		Annotation: `{"objects":[{"type":"path"}]}`,
	}
	url, err := e.captures.SaveAnnotation(ctx, doctorT1, res.CaptureID, req)
	require.NoError(t, err)

	var c remote.Capture
	require.NoError(t, e.store.Get(ctx, remote.Captures, res.CaptureID, &c))
	assert.Equal(t, strings.TrimSuffix(c.StoragePath, ".jpg")+"_annotated.png", c.AnnotatedPath)
	assert.Equal(t, e.blobs.URL(c.AnnotatedPath), url)
	assert.Equal(t, url, c.AnnotatedURL)
	assert.Equal(t, req.Annotation, c.Annotation, "payload stored verbatim")
	assert.Equal(t, url, c.ImageURL())

	stored, ok := e.blobs.Bytes(c.AnnotatedPath)
	require.True(t, ok)
	assert.Equal(t, tinyPNG, stored)
}

func TestSaveAnnotation_Rejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.registerPatient(t, doctorT1, "V-123")
	res, err := e.captures.Capture(ctx, doctorT1, p.ID, "Rodilla")
	require.NoError(t, err)

	_, err = e.captures.SaveAnnotation(ctx, doctorT1, res.CaptureID, &dto.AnnotationRequest{ImageData: "not base64!!"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.captures.SaveAnnotation(ctx, doctorT1, res.CaptureID, &dto.AnnotationRequest{
		ImageData: base64.StdEncoding.EncodeToString([]byte("plain text, not an image")),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	e.cfg.MaxAnnotationBytes = 16
	_, err = e.captures.SaveAnnotation(ctx, doctorT1, res.CaptureID, &dto.AnnotationRequest{
		ImageData: base64.StdEncoding.EncodeToString(tinyPNG),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.captures.SaveAnnotation(ctx, doctorT2, res.CaptureID, &dto.AnnotationRequest{Annotation: "{}"})
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)

	_, err = e.captures.SaveAnnotation(ctx, secretariaT1, res.CaptureID, &dto.AnnotationRequest{Annotation: "{}"})
	assert.ErrorIs(t, err, ErrForbidden)
}

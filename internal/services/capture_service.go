package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/google/uuid"
)

// TimestampLayout names captures at second resolution.
const TimestampLayout = "2006-01-02_15-04-05"

// blobName keeps captures taken in the same second apart.
func blobName(ts string) string {
	return ts + "_" + uuid.NewString()[:8]
}

type CaptureService struct {
	store  remote.Store
	blobs  blob.Store
	cache  LocalCache
	camera FrameSource
	cfg    *config.Config
	now    func() time.Time
}

func NewCaptureService(store remote.Store, blobs blob.Store, cache LocalCache, camera FrameSource, cfg *config.Config) *CaptureService {
	return &CaptureService{
		store:  store,
		blobs:  blobs,
		cache:  cache,
		camera: camera,
		cfg:    cfg,
		now:    time.Now,
	}
}

type CaptureResult struct {
	CaptureID string
	CloudURL  string
	// Synced is false when the image was stored but a metadata write failed.
	Synced bool
}

// Capture grabs one frame and files it under the patient.
//
// Camera, temp file and upload failures are returned and leave no metadata.
// Once the upload succeeds the call succeeds; document and cache write
// failures are logged and reported through Synced.
func (s *CaptureService) Capture(ctx context.Context, actor *tenant.Session, patientID, studyArea string) (*CaptureResult, error) {
	if !actor.HasRole(tenant.RoleDoctor) {
		return nil, ErrForbidden
	}
	studyArea = strings.TrimSpace(studyArea)
	if studyArea == "" || strings.ContainsAny(studyArea, `/\`) || studyArea == "." || studyArea == ".." {
		return nil, fmt.Errorf("%w: studyArea", ErrInvalidInput)
	}
	p, err := loadPatient(ctx, s.store, actor, patientID)
	if err != nil {
		return nil, err
	}

	frame, err := s.grab()
	if err != nil {
		return nil, err
	}

	ts := s.now().Format(TimestampLayout)
	tmpPath, err := s.writeTemp(ts, frame)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.RemoveTemp(tmpPath); err != nil {
			slog.Warn("temp capture not removed", "path", tmpPath, "error", err)
		}
	}()

	storagePath := path.Join("patients", p.ID, studyArea, blobName(ts)+".jpg")
	cloudURL, err := s.upload(ctx, tmpPath, storagePath)
	if err != nil {
		return nil, err
	}

	capture := &remote.Capture{
		PatientID:   p.ID,
		TeamID:      p.TeamID,
		StudyArea:   studyArea,
		Timestamp:   ts,
		StoragePath: storagePath,
		CloudURL:    cloudURL,
		CreatedBy:   actor.UserID,
	}
	result := &CaptureResult{CloudURL: cloudURL}

	id, err := s.store.Create(ctx, remote.Captures, capture)
	if err != nil {
		slog.Error("capture uploaded but not recorded", "action", "capture", "patient_id", p.ID,
			"storage_path", storagePath, "user_id", actor.UserID, "error", err)
		return result, nil
	}
	capture.ID = id
	result.CaptureID = id

	if err := s.cache.UpsertCapture(capture); err != nil {
		cacheDrift("cache_capture", id, err)
		return result, nil
	}
	result.Synced = true

	slog.Info("capture stored", "capture_id", id, "patient_id", p.ID, "study_area", studyArea, "user_id", actor.UserID)
	return result, nil
}

func (s *CaptureService) grab() ([]byte, error) {
	var (
		frame []byte
		err   error
	)
	if s.cfg.CaptureHighRes {
		frame, err = s.camera.CaptureHighRes()
	} else {
		frame, err = s.camera.GetFrame()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if len(frame) == 0 {
		return nil, ErrCameraUnavailable
	}
	return frame, nil
}

func (s *CaptureService) writeTemp(ts string, frame []byte) (string, error) {
	f, err := os.CreateTemp(s.cfg.CaptureTempDir, "capture_"+ts+"_*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp capture: %w", err)
	}
	if _, err := f.Write(frame); err != nil {
		f.Close()
		_ = s.RemoveTemp(f.Name())
		return "", fmt.Errorf("write temp capture: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.RemoveTemp(f.Name())
		return "", fmt.Errorf("close temp capture: %w", err)
	}
	return f.Name(), nil
}

func (s *CaptureService) upload(ctx context.Context, tmpPath, storagePath string) (string, error) {
	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("reopen temp capture: %w", err)
	}
	defer f.Close()

	url, err := s.blobs.Put(ctx, storagePath, f, "image/jpeg")
	if err != nil {
		return "", upstream(fmt.Errorf("upload %s: %w", storagePath, err))
	}
	return url, nil
}

// RemoveTemp deletes a temp capture. A file that is already gone is not an
// error, so the call can be repeated safely.
func (s *CaptureService) RemoveTemp(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Delete removes one capture: blobs first, then the document, then the cache row.
func (s *CaptureService) Delete(ctx context.Context, actor *tenant.Session, captureID string) error {
	if !actor.HasRole(tenant.RoleDoctor) {
		return ErrForbidden
	}
	c, err := loadCapture(ctx, s.store, actor, captureID)
	if err != nil {
		return err
	}
	if err := purgeCapture(ctx, s.store, s.blobs, c); err != nil {
		return upstream(err)
	}
	cacheDrift("uncache_capture", c.ID, s.cache.DeleteCapture(c.ID))
	slog.Info("capture deleted", "capture_id", c.ID, "patient_id", c.PatientID, "user_id", actor.UserID)
	return nil
}

// SaveAnnotation stores the rendered annotation image next to the capture
// and keeps the editor payload verbatim on the capture document.
func (s *CaptureService) SaveAnnotation(ctx context.Context, actor *tenant.Session, captureID string, req *dto.AnnotationRequest) (string, error) {
	if !actor.HasRole(tenant.RoleDoctor) {
		return "", ErrForbidden
	}
	if req.ImageData == "" && req.Annotation == "" {
		return "", fmt.Errorf("%w: nothing to save", ErrInvalidInput)
	}
	if len(req.Annotation) > s.cfg.MaxAnnotationBytes {
		return "", fmt.Errorf("%w: annotation exceeds %d bytes", ErrInvalidInput, s.cfg.MaxAnnotationBytes)
	}

	var (
		image       []byte
		contentType string
	)
	if req.ImageData != "" {
		var err error
		image, contentType, err = decodeDataURL(req.ImageData, s.cfg.MaxAnnotationBytes)
		if err != nil {
			return "", err
		}
	}

	c, err := loadCapture(ctx, s.store, actor, captureID)
	if err != nil {
		return "", err
	}

	fields := map[string]any{}
	if req.Annotation != "" {
		fields["annotation"] = req.Annotation
	}
	if image != nil {
		ext := ".png"
		if contentType == "image/jpeg" {
			ext = ".jpg"
		}
		annotatedPath := strings.TrimSuffix(c.StoragePath, path.Ext(c.StoragePath)) + "_annotated" + ext
		url, err := s.blobs.Put(ctx, annotatedPath, bytes.NewReader(image), contentType)
		if err != nil {
			return "", upstream(fmt.Errorf("upload %s: %w", annotatedPath, err))
		}
		if c.AnnotatedPath != "" && c.AnnotatedPath != annotatedPath {
			if err := s.blobs.Delete(ctx, c.AnnotatedPath); err != nil && !errors.Is(err, blob.ErrNotFound) {
				slog.Warn("previous annotation blob not removed", "path", c.AnnotatedPath, "error", err)
			}
		}
		fields["annotated_path"] = annotatedPath
		fields["annotated_url"] = url
		c.AnnotatedPath, c.AnnotatedURL = annotatedPath, url
	}

	if err := s.store.Update(ctx, remote.Captures, c.ID, fields); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return "", ErrNotFoundOrForbidden
		}
		return "", upstream(err)
	}
	cacheDrift("cache_capture", c.ID, s.cache.UpsertCapture(c))
	return c.AnnotatedURL, nil
}

// decodeDataURL accepts either a bare base64 string or a data: URL and only
// lets PNG and JPEG through.
func decodeDataURL(data string, limit int) ([]byte, string, error) {
	if i := strings.Index(data, "base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len("base64,"):]
	}
	if base64.StdEncoding.DecodedLen(len(data)) > limit+3 {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, limit)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image is not valid base64", ErrInvalidInput)
	}
	if len(raw) > limit {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, limit)
	}
	contentType := http.DetectContentType(raw)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, "", fmt.Errorf("%w: image must be png or jpeg, got %s", ErrInvalidInput, contentType)
	}
	return raw, contentType, nil
}

// purgeCapture deletes a capture's blobs and then its document. Blob failures
// are logged and skipped; only a document failure is returned.
func purgeCapture(ctx context.Context, store remote.Store, blobs blob.Store, c *remote.Capture) error {
	for _, p := range []string{c.StoragePath, c.AnnotatedPath} {
		if p == "" {
			continue
		}
		if err := blobs.Delete(ctx, p); err != nil && !errors.Is(err, blob.ErrNotFound) {
			slog.Error("blob delete failed, left for sweep", "action", "purge_capture", "capture_id", c.ID, "path", p, "error", err)
		}
	}
	if err := store.Delete(ctx, remote.Captures, c.ID); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("delete capture %s: %w", c.ID, err)
	}
	return nil
}

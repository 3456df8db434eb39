package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrNotFoundOrForbidden = errors.New("not found")
	ErrCameraUnavailable   = errors.New("camera unavailable")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicatePatient    = errors.New("patient with this cedula already exists")
	ErrPartialDelete       = errors.New("delete incomplete, retry")
	ErrMailDisabled        = errors.New("email delivery is not configured")
)

// LocalCache is the write side of the on-device mirror. Every call is best
// effort; failures are logged as drift and never surfaced.
type LocalCache interface {
	UpsertPatient(p *remote.Patient) error
	UpsertCapture(c *remote.Capture) error
	DeletePatient(remoteID string) error
	DeleteCapture(remoteID string) error
}

// FrameSource is the serialized camera handle.
type FrameSource interface {
	GetFrame() ([]byte, error)
	CaptureHighRes() ([]byte, error)
}

func cacheDrift(op, id string, err error) {
	if err != nil {
		slog.Warn("local cache out of sync", "action", op, "remote_id", id, "error", err)
	}
}

// loadPatient returns the patient only if it belongs to the actor's team.
// Missing and foreign patients are indistinguishable to the caller.
func loadPatient(ctx context.Context, store remote.Store, actor *tenant.Session, id string) (*remote.Patient, error) {
	if id == "" {
		return nil, ErrNotFoundOrForbidden
	}
	var p remote.Patient
	if err := store.Get(ctx, remote.Patients, id, &p); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrNotFoundOrForbidden
		}
		return nil, upstream(err)
	}
	if p.TeamID != actor.TeamID {
		return nil, ErrNotFoundOrForbidden
	}
	return &p, nil
}

func loadCapture(ctx context.Context, store remote.Store, actor *tenant.Session, id string) (*remote.Capture, error) {
	if id == "" {
		return nil, ErrNotFoundOrForbidden
	}
	var c remote.Capture
	if err := store.Get(ctx, remote.Captures, id, &c); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrNotFoundOrForbidden
		}
		return nil, upstream(err)
	}
	if c.TeamID != actor.TeamID {
		return nil, ErrNotFoundOrForbidden
	}
	return &c, nil
}

func upstream(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
)

type PatientService struct {
	store remote.Store
	blobs blob.Store
	cache LocalCache
}

func NewPatientService(store remote.Store, blobs blob.Store, cache LocalCache) *PatientService {
	return &PatientService{store: store, blobs: blobs, cache: cache}
}

// PatientDetail is a patient with its captures (newest first) and reports.
type PatientDetail struct {
	Patient  remote.Patient   `json:"patient"`
	Captures []remote.Capture `json:"captures"`
	Reports  []remote.Report  `json:"reports"`
}

func (s *PatientService) Register(ctx context.Context, actor *tenant.Session, req *dto.PatientRequest) (*remote.Patient, error) {
	if !actor.HasRole(tenant.RoleDoctor, tenant.RoleSecretaria) {
		return nil, ErrForbidden
	}

	p := &remote.Patient{
		Cedula:   strings.TrimSpace(req.Cedula),
		Nombre:   strings.TrimSpace(req.Nombre),
		Apellido: strings.TrimSpace(req.Apellido),
		Edad:     req.Edad,
		Telefono: strings.TrimSpace(req.Telefono),
		TeamID:   actor.TeamID,
	}
	if p.Cedula == "" || p.Nombre == "" || p.Apellido == "" {
		return nil, fmt.Errorf("%w: cedula, nombre and apellido are required", ErrInvalidInput)
	}
	if p.Edad < 0 || p.Edad > 150 {
		return nil, fmt.Errorf("%w: edad out of range", ErrInvalidInput)
	}

	var existing []remote.Patient
	q := remote.Where("team_id", actor.TeamID, remote.Filter{Field: "cedula", Value: p.Cedula})
	if err := s.store.Find(ctx, remote.Patients, q, &existing); err != nil {
		return nil, upstream(err)
	}
	if len(existing) > 0 {
		return nil, ErrDuplicatePatient
	}

	id, err := s.store.Create(ctx, remote.Patients, p)
	if err != nil {
		return nil, upstream(err)
	}
	p.ID = id

	cacheDrift("cache_patient", id, s.cache.UpsertPatient(p))
	slog.Info("patient registered", "patient_id", id, "team_id", actor.TeamID, "user_id", actor.UserID)
	return p, nil
}

func (s *PatientService) List(ctx context.Context, actor *tenant.Session) ([]remote.Patient, error) {
	var patients []remote.Patient
	err := s.store.Find(ctx, remote.Patients, remote.Query{
		Where:   []remote.Filter{{Field: "team_id", Value: actor.TeamID}},
		OrderBy: "apellido",
	}, &patients)
	if err != nil {
		return nil, upstream(err)
	}
	return patients, nil
}

func (s *PatientService) Detail(ctx context.Context, actor *tenant.Session, id string) (*PatientDetail, error) {
	p, err := loadPatient(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}

	detail := &PatientDetail{Patient: *p}
	if err := s.store.Find(ctx, remote.Captures, remote.Query{
		Where:   ownedBy(p),
		OrderBy: "timestamp",
		Desc:    true,
	}, &detail.Captures); err != nil {
		return nil, upstream(err)
	}
	if err := s.store.Find(ctx, remote.Reports, remote.Query{
		Where:   ownedBy(p),
		OrderBy: "created_at",
		Desc:    true,
	}, &detail.Reports); err != nil {
		return nil, upstream(err)
	}
	return detail, nil
}

func (s *PatientService) UpdateHistory(ctx context.Context, actor *tenant.Session, id, historia string) error {
	if !actor.HasRole(tenant.RoleDoctor) {
		return ErrForbidden
	}
	if _, err := loadPatient(ctx, s.store, actor, id); err != nil {
		return err
	}
	if err := s.store.Update(ctx, remote.Patients, id, map[string]any{"historia": historia}); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return ErrNotFoundOrForbidden
		}
		return upstream(err)
	}
	return nil
}

// Delete removes a patient and everything hanging off it: capture blobs,
// capture documents, report documents, the patient document and finally the
// cache rows. Individual failures are logged and the loop continues. Blob
// leftovers are reclaimed by the orphan sweep; document leftovers keep the
// patient document alive and the call returns ErrPartialDelete so it can be
// retried.
func (s *PatientService) Delete(ctx context.Context, actor *tenant.Session, id string) error {
	if !actor.HasRole(tenant.RoleDoctor) {
		return ErrForbidden
	}
	p, err := loadPatient(ctx, s.store, actor, id)
	if err != nil {
		return err
	}

	var captures []remote.Capture
	if err := s.store.Find(ctx, remote.Captures, remote.Where("patient_id", p.ID), &captures); err != nil {
		return upstream(err)
	}
	var reports []remote.Report
	if err := s.store.Find(ctx, remote.Reports, remote.Where("patient_id", p.ID), &reports); err != nil {
		return upstream(err)
	}

	failed := 0
	for i := range captures {
		if err := purgeCapture(ctx, s.store, s.blobs, &captures[i]); err != nil {
			failed++
			slog.Error("capture delete failed", "action", "delete_patient", "patient_id", p.ID, "capture_id", captures[i].ID, "error", err)
		}
	}
	for _, r := range reports {
		if err := s.store.Delete(ctx, remote.Reports, r.ID); err != nil && !errors.Is(err, remote.ErrNotFound) {
			failed++
			slog.Error("report delete failed", "action", "delete_patient", "patient_id", p.ID, "report_id", r.ID, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d dependent records left for patient %s", ErrPartialDelete, failed, len(captures)+len(reports), p.ID)
	}

	if err := s.store.Delete(ctx, remote.Patients, p.ID); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return upstream(err)
	}
	cacheDrift("uncache_patient", p.ID, s.cache.DeletePatient(p.ID))

	slog.Info("patient deleted", "patient_id", p.ID, "team_id", p.TeamID, "user_id", actor.UserID,
		"captures", len(captures), "reports", len(reports))
	return nil
}

func ownedBy(p *remote.Patient) []remote.Filter {
	return []remote.Filter{
		{Field: "patient_id", Value: p.ID},
		{Field: "team_id", Value: p.TeamID},
	}
}

// Package cache is the on-device mirror of remote patients and captures.
// It is rebuildable from the remote store at any time and is never consulted
// for authorization or correctness.
package cache

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/models"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertPatient(p *remote.Patient) error {
	row := patientRow(p)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"team_id", "cedula", "nombre", "apellido", "edad", "telefono", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("cache patient %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) UpsertCapture(c *remote.Capture) error {
	row := captureRow(c)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"study_area", "timestamp", "storage_path", "cloud_url", "annotated_url", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("cache capture %s: %w", c.ID, err)
	}
	return nil
}

// DeletePatient removes the patient row and every capture row pointing at it.
// Missing rows are not an error.
func (s *Store) DeletePatient(remoteID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_remote_id = ?", remoteID).Delete(&models.CachedCapture{}).Error; err != nil {
			return fmt.Errorf("uncache captures of %s: %w", remoteID, err)
		}
		if err := tx.Where("remote_id = ?", remoteID).Delete(&models.CachedPatient{}).Error; err != nil {
			return fmt.Errorf("uncache patient %s: %w", remoteID, err)
		}
		return nil
	})
}

func (s *Store) DeleteCapture(remoteID string) error {
	if err := s.db.Where("remote_id = ?", remoteID).Delete(&models.CachedCapture{}).Error; err != nil {
		return fmt.Errorf("uncache capture %s: %w", remoteID, err)
	}
	return nil
}

func (s *Store) ListPatients(teamID string) ([]models.CachedPatient, error) {
	var rows []models.CachedPatient
	err := s.db.Scopes(tenant.ForTeam(teamID)).
		Order("apellido, nombre").
		Find(&rows).Error
	return rows, err
}

func (s *Store) ListCaptures(patientRemoteID string) ([]models.CachedCapture, error) {
	var rows []models.CachedCapture
	err := s.db.Where("patient_remote_id = ?", patientRemoteID).
		Order("timestamp DESC").
		Find(&rows).Error
	return rows, err
}

// Rebuild replaces every cached row of a team with the given remote state.
// Captures whose patient is not in the set are dropped.
func (s *Store) Rebuild(teamID string, patients []remote.Patient, captures []remote.Capture) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.ForTeam(teamID)).Delete(&models.CachedCapture{}).Error; err != nil {
			return fmt.Errorf("clear captures: %w", err)
		}
		if err := tx.Scopes(tenant.ForTeam(teamID)).Delete(&models.CachedPatient{}).Error; err != nil {
			return fmt.Errorf("clear patients: %w", err)
		}

		known := make(map[string]struct{}, len(patients))
		patientRows := make([]models.CachedPatient, 0, len(patients))
		for i := range patients {
			known[patients[i].ID] = struct{}{}
			patientRows = append(patientRows, patientRow(&patients[i]))
		}
		captureRows := make([]models.CachedCapture, 0, len(captures))
		for i := range captures {
			if _, ok := known[captures[i].PatientID]; !ok {
				continue
			}
			captureRows = append(captureRows, captureRow(&captures[i]))
		}

		if len(patientRows) > 0 {
			if err := tx.CreateInBatches(patientRows, 100).Error; err != nil {
				return fmt.Errorf("insert patients: %w", err)
			}
		}
		if len(captureRows) > 0 {
			if err := tx.CreateInBatches(captureRows, 100).Error; err != nil {
				return fmt.Errorf("insert captures: %w", err)
			}
		}
		return nil
	})
}

func patientRow(p *remote.Patient) models.CachedPatient {
	return models.CachedPatient{
		RemoteID: p.ID,
		TeamID:   p.TeamID,
		Cedula:   p.Cedula,
		Nombre:   p.Nombre,
		Apellido: p.Apellido,
		Edad:     p.Edad,
		Telefono: p.Telefono,
	}
}

func captureRow(c *remote.Capture) models.CachedCapture {
	return models.CachedCapture{
		RemoteID:        c.ID,
		PatientRemoteID: c.PatientID,
		TeamID:          c.TeamID,
		StudyArea:       c.StudyArea,
		Timestamp:       c.Timestamp,
		StoragePath:     c.StoragePath,
		CloudURL:        c.CloudURL,
		AnnotatedURL:    c.AnnotatedURL,
	}
}

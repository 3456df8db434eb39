package models

import "time"

type CachedCapture struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RemoteID        string    `gorm:"size:64;not null;uniqueIndex" json:"remote_id"`
	PatientRemoteID string    `gorm:"size:64;not null;index" json:"patient_remote_id"`
	TeamID          string    `gorm:"size:64;not null;index" json:"team_id"`
	StudyArea       string    `gorm:"size:80" json:"study_area"`
	Timestamp       string    `gorm:"size:32" json:"timestamp"`
	StoragePath     string    `gorm:"size:255" json:"storage_path"`
	CloudURL        string    `gorm:"size:512" json:"cloud_url"`
	AnnotatedURL    string    `gorm:"size:512" json:"annotated_url"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (CachedCapture) TableName() string { return "captures" }

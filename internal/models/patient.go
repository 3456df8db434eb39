package models

import "time"

// CachedPatient mirrors a remote patient document. RemoteID is the join key;
// the local ID has no meaning outside this database.
type CachedPatient struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	RemoteID  string          `gorm:"size:64;not null;uniqueIndex" json:"remote_id"`
	TeamID    string          `gorm:"size:64;not null;uniqueIndex:idx_patients_team_cedula;index" json:"team_id"`
	Cedula    string          `gorm:"size:32;not null;uniqueIndex:idx_patients_team_cedula" json:"cedula"`
	Nombre    string          `gorm:"size:120" json:"nombre"`
	Apellido  string          `gorm:"size:120" json:"apellido"`
	Edad      int             `json:"edad"`
	Telefono  string          `gorm:"size:40" json:"telefono"`
	Captures  []CachedCapture `gorm:"foreignKey:PatientRemoteID;references:RemoteID;constraint:OnDelete:CASCADE" json:"-"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (CachedPatient) TableName() string { return "patients" }

package remote

import "time"

type Patient struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Cedula    string    `bson:"cedula" json:"cedula"`
	Nombre    string    `bson:"nombre" json:"nombre"`
	Apellido  string    `bson:"apellido" json:"apellido"`
	Edad      int       `bson:"edad" json:"edad"`
	Telefono  string    `bson:"telefono,omitempty" json:"telefono,omitempty"`
	TeamID    string    `bson:"team_id" json:"team_id"`
	Historia  string    `bson:"historia,omitempty" json:"historia,omitempty"`
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at"`
}

// Capture is one stored image. Annotation is an opaque client payload and is
// never interpreted server side.
type Capture struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	PatientID     string    `bson:"patient_id" json:"patient_id"`
	TeamID        string    `bson:"team_id" json:"team_id"`
	StudyArea     string    `bson:"study_area" json:"study_area"`
	Timestamp     string    `bson:"timestamp" json:"timestamp"`
	StoragePath   string    `bson:"storage_path" json:"storage_path"`
	CloudURL      string    `bson:"cloud_url" json:"cloud_url"`
	AnnotatedPath string    `bson:"annotated_path,omitempty" json:"annotated_path,omitempty"`
	AnnotatedURL  string    `bson:"annotated_url,omitempty" json:"annotated_url,omitempty"`
	Annotation    string    `bson:"annotation,omitempty" json:"annotation,omitempty"`
	CreatedBy     string    `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty" json:"updated_at"`
}

// ImageURL prefers the annotated rendition when one exists.
func (c *Capture) ImageURL() string {
	if c.AnnotatedURL != "" {
		return c.AnnotatedURL
	}
	return c.CloudURL
}

type Team struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	OwnerUserID string    `bson:"owner_user_id" json:"owner_user_id"`
	JoinCode    string    `bson:"join_code" json:"join_code"`
	CreatedAt   time.Time `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at"`
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Role         string    `bson:"role" json:"role"`
	TeamID       string    `bson:"team_id" json:"team_id"`
	PasswordHash string    `bson:"password_hash,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updated_at"`
}

type Report struct {
	ID                 string    `bson:"_id,omitempty" json:"id"`
	PatientID          string    `bson:"patient_id" json:"patient_id"`
	TeamID             string    `bson:"team_id" json:"team_id"`
	DoctorID           string    `bson:"doctor_id" json:"doctor_id"`
	SelectedCaptureIDs []string  `bson:"selected_capture_ids" json:"selected_capture_ids"`
	Extremidad         []string  `bson:"extremidad" json:"extremidad"`
	Hallazgos          []string  `bson:"hallazgos" json:"hallazgos"`
	Conclusiones       string    `bson:"conclusiones" json:"conclusiones"`
	AnalysisDate       string    `bson:"analysis_date" json:"analysis_date"`
	CreatedAt          time.Time `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at,omitempty" json:"updated_at"`
}

package dto

type PatientRequest struct {
	Cedula   string `json:"cedula" form:"cedula"`
	Nombre   string `json:"nombre" form:"nombre"`
	Apellido string `json:"apellido" form:"apellido"`
	Edad     int    `json:"edad" form:"edad"`
	Telefono string `json:"telefono,omitempty" form:"telefono"`
}

type HistoryRequest struct {
	Historia string `json:"historia" form:"historia"`
}

type CaptureResponse struct {
	Message   string `json:"message"`
	CaptureID string `json:"captureId,omitempty"`
	CloudURL  string `json:"cloudUrl"`
	Synced    bool   `json:"synced"`
}

// AnnotationRequest carries the rendered annotation image as a base64 data
// URL plus the editor state, which is stored verbatim.
type AnnotationRequest struct {
	ImageData  string `json:"imageData" form:"imageData"`
	Annotation string `json:"annotation" form:"annotation"`
}

type AnnotationResponse struct {
	AnnotatedURL string `json:"annotatedUrl,omitempty"`
}

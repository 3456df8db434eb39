package dto

type ReportRequest struct {
	SelectedCaptureIDs []string `json:"selected_capture_ids" form:"selected_capture_ids"`
	Extremidad         []string `json:"extremidad" form:"extremidad"`
	Hallazgos          []string `json:"hallazgos" form:"hallazgos"`
	Conclusiones       string   `json:"conclusiones" form:"conclusiones"`
	AnalysisDate       string   `json:"analysis_date,omitempty" form:"analysis_date"`
}

type SyncResponse struct {
	Teams    int `json:"teams"`
	Patients int `json:"patients"`
	Captures int `json:"captures"`
}

type ReportCreatedResponse struct {
	Message  string `json:"message"`
	ReportID string `json:"reportId"`
}

type ReportSentResponse struct {
	Message string `json:"message"`
	SentTo  string `json:"sentTo"`
	Skipped int    `json:"skipped,omitempty"`
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/jung-kurt/gofpdf"
)

// PDFMailer delivers a rendered report.
type PDFMailer interface {
	SendPDF(to, subject, body, filename string, pdf []byte) error
}

type ReportService struct {
	store      remote.Store
	mailer     PDFMailer
	httpClient *http.Client
	now        func() time.Time
}

// NewReportService wires the service. mailer may be nil, which disables Email.
func NewReportService(store remote.Store, mailer PDFMailer, cfg *config.Config) *ReportService {
	return &ReportService{
		store:      store,
		mailer:     mailer,
		httpClient: &http.Client{Timeout: cfg.ImageFetchTimeout},
		now:        time.Now,
	}
}

// RenderedReport is a generated PDF ready to download or mail.
type RenderedReport struct {
	Filename string
	PDF      []byte
	Report   *remote.Report
	Patient  *remote.Patient
	// Skipped lists captures whose image could not be fetched or decoded.
	Skipped []string
}

func (s *ReportService) Create(ctx context.Context, actor *tenant.Session, patientID string, req *dto.ReportRequest) (*remote.Report, error) {
	if !actor.HasRole(tenant.RoleDoctor) {
		return nil, ErrForbidden
	}
	p, err := loadPatient(ctx, s.store, actor, patientID)
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(req.SelectedCaptureIDs))
	seen := make(map[string]struct{}, len(req.SelectedCaptureIDs))
	for _, id := range req.SelectedCaptureIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		c, err := loadCapture(ctx, s.store, actor, id)
		if err != nil {
			if errors.Is(err, ErrNotFoundOrForbidden) {
				return nil, fmt.Errorf("%w: capture %s does not belong to this patient", ErrInvalidInput, id)
			}
			return nil, err
		}
		if c.PatientID != p.ID {
			return nil, fmt.Errorf("%w: capture %s does not belong to this patient", ErrInvalidInput, id)
		}
		selected = append(selected, id)
	}

	analysisDate := strings.TrimSpace(req.AnalysisDate)
	if analysisDate == "" {
		analysisDate = s.now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", analysisDate); err != nil {
		return nil, fmt.Errorf("%w: analysis_date must be YYYY-MM-DD", ErrInvalidInput)
	}

	report := &remote.Report{
		PatientID:          p.ID,
		TeamID:             p.TeamID,
		DoctorID:           actor.UserID,
		SelectedCaptureIDs: selected,
		Extremidad:         nonEmpty(req.Extremidad),
		Hallazgos:          nonEmpty(req.Hallazgos),
		Conclusiones:       strings.TrimSpace(req.Conclusiones),
		AnalysisDate:       analysisDate,
	}
	id, err := s.store.Create(ctx, remote.Reports, report)
	if err != nil {
		return nil, upstream(err)
	}
	report.ID = id

	slog.Info("report created", "report_id", id, "patient_id", p.ID, "captures", len(selected), "user_id", actor.UserID)
	return report, nil
}

// Generate renders the report as a PDF. Images that cannot be fetched are
// left out; the rest of the document is still produced.
func (s *ReportService) Generate(ctx context.Context, actor *tenant.Session, reportID string) (*RenderedReport, error) {
	if !actor.HasRole(tenant.RoleDoctor, tenant.RoleSecretaria) {
		return nil, ErrForbidden
	}
	report, err := s.loadReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	p, err := loadPatient(ctx, s.store, actor, report.PatientID)
	if err != nil {
		return nil, err
	}

	out := &RenderedReport{Report: report, Patient: p}
	var images []reportImage
	for _, id := range report.SelectedCaptureIDs {
		c, err := loadCapture(ctx, s.store, actor, id)
		if err != nil || c.PatientID != p.ID {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		img, err := s.fetchImage(ctx, c.ImageURL())
		if err != nil {
			slog.Info("report image skipped", "report_id", report.ID, "capture_id", id, "error", err)
			out.Skipped = append(out.Skipped, id)
			continue
		}
		img.capture = c
		images = append(images, *img)
	}

	pdf, skipped, err := renderReport(report, p, images, s.now())
	if err != nil {
		return nil, err
	}
	out.PDF = pdf
	out.Skipped = append(out.Skipped, skipped...)
	out.Filename = reportFilename(p, report)
	return out, nil
}

// Email renders the report and mails it to the acting user.
func (s *ReportService) Email(ctx context.Context, actor *tenant.Session, reportID string) (string, error) {
	if s.mailer == nil {
		return "", ErrMailDisabled
	}
	if actor != nil && actor.Email == "" {
		return "", fmt.Errorf("%w: account has no email address", ErrInvalidInput)
	}
	rendered, err := s.Generate(ctx, actor, reportID)
	if err != nil {
		return "", err
	}

	subject := fmt.Sprintf("Informe de linfoscopia - %s %s", rendered.Patient.Nombre, rendered.Patient.Apellido)
	body := fmt.Sprintf("Adjunto el informe del %s para el paciente con cédula %s.",
		rendered.Report.AnalysisDate, rendered.Patient.Cedula)
	if err := s.mailer.SendPDF(actor.Email, subject, body, rendered.Filename, rendered.PDF); err != nil {
		return "", upstream(err)
	}
	slog.Info("report emailed", "report_id", reportID, "user_id", actor.UserID)
	return actor.Email, nil
}

func (s *ReportService) loadReport(ctx context.Context, actor *tenant.Session, id string) (*remote.Report, error) {
	if id == "" {
		return nil, ErrNotFoundOrForbidden
	}
	var r remote.Report
	if err := s.store.Get(ctx, remote.Reports, id, &r); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrNotFoundOrForbidden
		}
		return nil, upstream(err)
	}
	if r.TeamID != actor.TeamID {
		return nil, ErrNotFoundOrForbidden
	}
	return &r, nil
}

type reportImage struct {
	capture   *remote.Capture
	data      []byte
	imageType string
	width     int
	height    int
}

func (s *ReportService) fetchImage(ctx context.Context, url string) (*reportImage, error) {
	if url == "" {
		return nil, errors.New("capture has no image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("undecodable image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, errors.New("empty image")
	}
	imageType := map[string]string{"jpeg": "JPG", "png": "PNG", "gif": "GIF"}[format]
	if imageType == "" {
		return nil, fmt.Errorf("unsupported image format %s", format)
	}
	return &reportImage{data: data, imageType: imageType, width: cfg.Width, height: cfg.Height}, nil
}

const (
	pageWidth   = 210.0
	marginX     = 15.0
	imageMaxW   = pageWidth - 2*marginX
	imageMaxH   = 220.0
	imageOffset = 35.0
)

// renderReport lays out the title page followed by one page per image.
func renderReport(report *remote.Report, p *remote.Patient, images []reportImage, now time.Time) ([]byte, []string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Informe de linfoscopia", true)
	pdf.SetCreator("linfoscopio", true)
	pdf.SetCreationDate(now)
	pdf.SetMargins(marginX, 15, marginX)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Página %d/{nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, tr("Informe de Linfoscopía"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, tr("Datos del paciente"), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 7, tr(value), "", "L", false)
	}
	field("Nombre:", p.Nombre+" "+p.Apellido)
	field("Cédula:", p.Cedula)
	field("Edad:", strconv.Itoa(p.Edad))
	if p.Telefono != "" {
		field("Teléfono:", p.Telefono)
	}
	field("Fecha de análisis:", report.AnalysisDate)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, tr("Hallazgos"), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	field("Extremidad:", orDash(strings.Join(report.Extremidad, ", ")))
	pdf.SetFont("Arial", "", 11)
	if len(report.Hallazgos) == 0 {
		pdf.MultiCell(0, 7, "-", "", "L", false)
	}
	for _, h := range report.Hallazgos {
		pdf.MultiCell(0, 7, tr("• "+h), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 9, tr("Conclusiones"), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 7, tr(orDash(report.Conclusiones)), "", "L", false)

	var skipped []string
	for i, img := range images {
		name := fmt.Sprintf("capture-%d", i)
		opts := gofpdf.ImageOptions{ImageType: img.imageType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
		if !pdf.Ok() {
			slog.Info("report image rejected by renderer", "report_id", report.ID, "capture_id", img.capture.ID, "error", pdf.Error())
			pdf.ClearError()
			skipped = append(skipped, img.capture.ID)
			continue
		}

		w, h := fitImage(float64(img.width), float64(img.height))
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("Captura %d de %d", i+1, len(images))), "", 1, "L", false, 0, "")
		pdf.ImageOptions(name, (pageWidth-w)/2, imageOffset, w, h, false, opts, 0, "")
		pdf.SetY(imageOffset + h + 4)
		pdf.SetFont("Arial", "", 10)
		caption := fmt.Sprintf("Área de estudio: %s | Fecha: %s", img.capture.StudyArea, img.capture.Timestamp)
		if img.capture.AnnotatedURL != "" {
			caption += " | Anotada"
		}
		pdf.CellFormat(0, 6, tr(caption), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), skipped, nil
}

func fitImage(w, h float64) (float64, float64) {
	outW := imageMaxW
	outH := imageMaxW * h / w
	if outH > imageMaxH {
		outH = imageMaxH
		outW = imageMaxH * w / h
	}
	return outW, outH
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func reportFilename(p *remote.Patient, r *remote.Report) string {
	name := fmt.Sprintf("informe_%s_%s.pdf", p.Cedula, r.AnalysisDate)
	return unsafeFilename.ReplaceAllString(name, "-")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

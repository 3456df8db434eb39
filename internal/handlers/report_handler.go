package handlers

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	report, err := h.reports.Create(c.UserContext(), tenant.GetSession(c), c.Params("patientId"), &req)
	if err != nil {
		return respondError(c, "create_report", err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReportCreatedResponse{
		Message:  "Report saved",
		ReportID: report.ID,
	})
}

// Generate returns the rendered PDF as an attachment.
func (h *ReportHandler) Generate(c *fiber.Ctx) error {
	rendered, err := h.reports.Generate(c.UserContext(), tenant.GetSession(c), c.Params("id"))
	if err != nil {
		return respondError(c, "generate_report", err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, rendered.Filename))
	if len(rendered.Skipped) > 0 {
		c.Set("X-Report-Skipped-Images", fmt.Sprint(len(rendered.Skipped)))
	}
	return c.Send(rendered.PDF)
}

func (h *ReportHandler) Send(c *fiber.Ctx) error {
	to, err := h.reports.Email(c.UserContext(), tenant.GetSession(c), c.Params("id"))
	if err != nil {
		return respondError(c, "send_report", err)
	}
	return c.JSON(dto.ReportSentResponse{Message: "Report sent", SentTo: to})
}

package handlers

import (
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type CaptureHandler struct {
	captures *services.CaptureService
}

func NewCaptureHandler(captures *services.CaptureService) *CaptureHandler {
	return &CaptureHandler{captures: captures}
}

// Capture takes patientId and studyArea from the query string, falling back
// to form fields.
func (h *CaptureHandler) Capture(c *fiber.Ctx) error {
	patientID := c.Query("patientId", c.FormValue("patientId"))
	studyArea := c.Query("studyArea", c.FormValue("studyArea"))

	res, err := h.captures.Capture(c.UserContext(), tenant.GetSession(c), patientID, studyArea)
	if err != nil {
		return respondError(c, "capture", err)
	}

	msg := "Capture stored"
	if !res.Synced {
		msg = "Capture uploaded; metadata sync pending"
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CaptureResponse{
		Message:   msg,
		CaptureID: res.CaptureID,
		CloudURL:  res.CloudURL,
		Synced:    res.Synced,
	})
}

func (h *CaptureHandler) Delete(c *fiber.Ctx) error {
	if err := h.captures.Delete(c.UserContext(), tenant.GetSession(c), c.Params("id")); err != nil {
		return respondError(c, "delete_capture", err)
	}
	return c.JSON(dto.MessageResponse{Message: "Capture deleted"})
}

func (h *CaptureHandler) SaveAnnotation(c *fiber.Ctx) error {
	var req dto.AnnotationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	url, err := h.captures.SaveAnnotation(c.UserContext(), tenant.GetSession(c), c.Params("id"), &req)
	if err != nil {
		return respondError(c, "save_annotation", err)
	}
	return c.JSON(dto.AnnotationResponse{AnnotatedURL: url})
}

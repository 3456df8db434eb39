package handlers

import (
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type PatientHandler struct {
	patients *services.PatientService
}

func NewPatientHandler(patients *services.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// Dashboard lists the patients of the caller's team.
func (h *PatientHandler) Dashboard(c *fiber.Ctx) error {
	session := tenant.GetSession(c)
	patients, err := h.patients.List(c.UserContext(), session)
	if err != nil {
		return respondError(c, "list_patients", err)
	}
	return c.JSON(fiber.Map{
		"user": dto.UserResponse{
			ID: session.UserID, Email: session.Email, Role: session.Role, TeamID: session.TeamID,
		},
		"patients": patients,
	})
}

func (h *PatientHandler) Add(c *fiber.Ctx) error {
	var req dto.PatientRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	p, err := h.patients.Register(c.UserContext(), tenant.GetSession(c), &req)
	if err != nil {
		return respondError(c, "register_patient", err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *PatientHandler) Detail(c *fiber.Ctx) error {
	detail, err := h.patients.Detail(c.UserContext(), tenant.GetSession(c), c.Params("id"))
	if err != nil {
		return respondError(c, "patient_detail", err)
	}
	return c.JSON(detail)
}

func (h *PatientHandler) UpdateHistory(c *fiber.Ctx) error {
	var req dto.HistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	if err := h.patients.UpdateHistory(c.UserContext(), tenant.GetSession(c), c.Params("id"), req.Historia); err != nil {
		return respondError(c, "update_history", err)
	}
	return c.JSON(dto.MessageResponse{Message: "History updated"})
}

func (h *PatientHandler) Delete(c *fiber.Ctx) error {
	if err := h.patients.Delete(c.UserContext(), tenant.GetSession(c), c.Params("id")); err != nil {
		return respondError(c, "delete_patient", err)
	}
	return c.JSON(dto.MessageResponse{Message: "Patient and all captures deleted"})
}

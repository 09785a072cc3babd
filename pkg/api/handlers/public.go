package handlers

import (
	"net/http"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/leads"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

// PublicHandler handles unauthenticated intake from the marketing site
type PublicHandler struct {
	leads     *leads.Service
	validator *validation.Validator
}

// NewPublicHandler creates a new public intake handler
func NewPublicHandler(ls *leads.Service, v *validation.Validator) *PublicHandler {
	return &PublicHandler{leads: ls, validator: v}
}

// Contact godoc
// @Summary Submit contact form
// @Description Creates a website lead, assigns it and notifies the admins
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.ContactFormRequest true "Enquiry"
// @Success 201 {object} models.ContactResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/public/contact [post]
func (h *PublicHandler) Contact(c echo.Context) error {
	var req models.ContactFormRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	lead, err := h.leads.SubmitContact(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, models.ContactResponse{
		Success: true,
		LeadID:  lead.ID,
		Message: "Thank you! An agent will contact you shortly.",
	})
}

// Chat godoc
// @Summary Chat with the assistant
// @Description Pass the returned lead_id as session_lead_id to continue a conversation
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.ChatRequest true "Visitor message"
// @Success 200 {object} models.ChatResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/public/chat [post]
func (h *PublicHandler) Chat(c echo.Context) error {
	var req models.ChatRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 45*time.Second)
	defer cancel()

	resp, err := h.leads.Chat(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

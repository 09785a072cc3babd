package handlers

import (
	"errors"
	"net/http"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/labstack/echo/v4"
)

// PhoneHandler handles phone validation endpoints.
type PhoneHandler struct {
	phones *phone.Normalizer
}

// NewPhoneHandler creates a new phone handler.
func NewPhoneHandler(phones *phone.Normalizer) *PhoneHandler {
	if phones == nil {
		phones = phone.NewNormalizer(phone.DefaultRegion)
	}
	return &PhoneHandler{phones: phones}
}

// ValidatePhoneRequest represents a phone validation request.
type ValidatePhoneRequest struct {
	Phone  string `json:"phone"`
	Region string `json:"region,omitempty"` // defaults to the server's region
}

// ValidatePhone godoc
// @Summary Validate a phone number
// @Description Validate and normalize a phone number, as the lead forms do
// @Tags Phone
// @Accept json
// @Produce json
// @Param request body ValidatePhoneRequest true "Phone validation request"
// @Success 200 {object} phone.Result
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/phone/validate [post]
func (h *PhoneHandler) ValidatePhone(c echo.Context) error {
	var req ValidatePhoneRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewBadRequestError("Invalid request body")
	}

	n := h.phones
	if req.Region != "" {
		n = phone.NewNormalizer(req.Region)
	}
	res, err := n.Parse(req.Phone)
	if err != nil {
		if errors.Is(err, phone.ErrEmpty) {
			return domain.NewValidationError("Validation failed", domain.FieldError{
				Field: "phone", Message: "is required", Code: "required",
			})
		}
		return c.JSON(http.StatusOK, phone.Result{IsValid: false})
	}
	return c.JSON(http.StatusOK, res)
}

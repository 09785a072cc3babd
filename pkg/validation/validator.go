package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/labstack/echo/v4"
)

// Error codes attached to field errors.
const (
	CodeRequired     = "required"
	CodeTooSmall     = "too_small"
	CodeTooBig       = "too_big"
	CodeInvalidEnum  = "invalid_enum"
	CodeInvalidEmail = "invalid_email"
	CodeInvalidPhone = "invalid_phone"
	CodeInvalidURL   = "invalid_url"
	CodeInvalidRange = "invalid_range"
	CodeInvalid      = "invalid"
)

const rangeTag = "range"

// Validator runs the sanitize-then-validate pipeline for request payloads.
type Validator struct {
	validate  *validator.Validate
	sanitizer *Sanitizer
	phones    *phone.Normalizer
}

// New creates a Validator. Phone rules parse numbers relative to phones' region.
func New(phones *phone.Normalizer) *Validator {
	if phones == nil {
		phones = phone.NewNormalizer(phone.DefaultRegion)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phones.IsValid(fl.Field().String())
	})

	v.RegisterStructValidation(budgetRange,
		models.LeadCreateRequest{}, models.LeadUpdateRequest{}, models.ContactFormRequest{})
	v.RegisterStructValidation(demandRange, models.DemandRequest{})
	v.RegisterStructValidation(listRange, models.LeadListQuery{}, models.PropertyListQuery{})

	return &Validator{validate: v, sanitizer: NewSanitizer(), phones: phones}
}

// Sanitizer exposes the string cleaner used by Bind.
func (v *Validator) Sanitizer() *Sanitizer {
	return v.sanitizer
}

// Phones exposes the phone normaliser used by the phone rule.
func (v *Validator) Phones() *phone.Normalizer {
	return v.phones
}

// Check validates s and returns one FieldError per failed rule.
func (v *Validator) Check(s any) []domain.FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.FieldError{{Field: "", Message: err.Error(), Code: CodeInvalid}}
	}

	out := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, toFieldError(fe))
	}
	return out
}

// Validate satisfies echo.Validator.
func (v *Validator) Validate(i any) error {
	if fields := v.Check(i); len(fields) > 0 {
		return domain.NewValidationError("Validation failed", fields...)
	}
	return nil
}

// Bind decodes the request into dst, sanitises its strings and validates it.
func (v *Validator) Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domain.NewBadRequestError("Invalid request body")
	}
	return v.SanitizeAndValidate(dst)
}

// SanitizeAndValidate runs the pipeline on an already decoded value.
func (v *Validator) SanitizeAndValidate(dst any) error {
	v.sanitizer.SanitizeStruct(dst)
	return v.Validate(dst)
}

func toFieldError(fe validator.FieldError) domain.FieldError {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	if field == "" {
		field = fe.Field()
	}

	isText := fe.Kind() == reflect.String
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map

	switch fe.Tag() {
	case "required":
		return domain.FieldError{Field: field, Message: "is required", Code: CodeRequired}
	case "min", "gte", "gt":
		switch {
		case isText:
			return domain.FieldError{Field: field, Message: fmt.Sprintf("must be at least %s characters", fe.Param()), Code: CodeTooSmall}
		case isList:
			return domain.FieldError{Field: field, Message: fmt.Sprintf("must contain at least %s items", fe.Param()), Code: CodeTooSmall}
		}
		return domain.FieldError{Field: field, Message: fmt.Sprintf("must be at least %s", fe.Param()), Code: CodeTooSmall}
	case "max", "lte", "lt":
		switch {
		case isText:
			return domain.FieldError{Field: field, Message: fmt.Sprintf("must be at most %s characters", fe.Param()), Code: CodeTooBig}
		case isList:
			return domain.FieldError{Field: field, Message: fmt.Sprintf("must contain at most %s items", fe.Param()), Code: CodeTooBig}
		}
		return domain.FieldError{Field: field, Message: fmt.Sprintf("must be at most %s", fe.Param()), Code: CodeTooBig}
	case "oneof":
		return domain.FieldError{Field: field, Message: "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", "), Code: CodeInvalidEnum}
	case "email":
		return domain.FieldError{Field: field, Message: "must be a valid email address", Code: CodeInvalidEmail}
	case "phone":
		return domain.FieldError{Field: field, Message: "must be a valid phone number", Code: CodeInvalidPhone}
	case "url":
		return domain.FieldError{Field: field, Message: "must be a valid URL", Code: CodeInvalidURL}
	case rangeTag:
		return domain.FieldError{Field: field, Message: fmt.Sprintf("must be greater than or equal to %s", fe.Param()), Code: CodeInvalidRange}
	case "nefield":
		return domain.FieldError{Field: field, Message: "must differ from the current value", Code: CodeInvalid}
	default:
		return domain.FieldError{Field: field, Message: "is invalid", Code: CodeInvalid}
	}
}

func reportRange(sl validator.StructLevel, value any, field, goField, lowerField string) {
	sl.ReportError(value, field, goField, rangeTag, lowerField)
}

func budgetRange(sl validator.StructLevel) {
	var lo, hi *float64
	switch r := sl.Current().Interface().(type) {
	case models.LeadCreateRequest:
		lo, hi = r.BudgetMin, r.BudgetMax
	case models.LeadUpdateRequest:
		lo, hi = r.BudgetMin, r.BudgetMax
	case models.ContactFormRequest:
		lo, hi = r.BudgetMin, r.BudgetMax
	}
	if lo != nil && hi != nil && *lo > *hi {
		reportRange(sl, *hi, "budget_max", "BudgetMax", "budget_min")
	}
}

func demandRange(sl validator.StructLevel) {
	d, ok := sl.Current().Interface().(models.DemandRequest)
	if !ok {
		return
	}
	if d.BudgetMin != nil && d.BudgetMax != nil && *d.BudgetMin > *d.BudgetMax {
		reportRange(sl, *d.BudgetMax, "budget_max", "BudgetMax", "budget_min")
	}
	if d.AreaMax > 0 && d.AreaMin > d.AreaMax {
		reportRange(sl, d.AreaMax, "area_max", "AreaMax", "area_min")
	}
}

func listRange(sl validator.StructLevel) {
	switch q := sl.Current().Interface().(type) {
	case models.LeadListQuery:
		if q.MinScore != nil && q.MaxScore != nil && *q.MinScore > *q.MaxScore {
			reportRange(sl, *q.MaxScore, "max_score", "MaxScore", "min_score")
		}
	case models.PropertyListQuery:
		if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
			reportRange(sl, *q.MaxPrice, "max_price", "MaxPrice", "min_price")
		}
	}
}

// CheckBudget enforces budget_min <= budget_max on merged values.
func CheckBudget(lo, hi *float64) error {
	if lo != nil && hi != nil && *lo > *hi {
		return domain.NewValidationError("Validation failed", domain.FieldError{
			Field:   "budget_max",
			Message: "must be greater than or equal to budget_min",
			Code:    CodeInvalidRange,
		})
	}
	return nil
}

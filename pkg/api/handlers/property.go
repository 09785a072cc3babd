package handlers

import (
	"net/http"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/importer"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/properties"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/jordanlanch/estatecrm/pkg/storage"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

// maxUploadSize bounds multipart bodies for imports and media.
const maxUploadSize = 20 << 20

// PropertyHandler handles listing endpoints
type PropertyHandler struct {
	properties *properties.Service
	importer   *importer.Importer
	validator  *validation.Validator
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(ps *properties.Service, imp *importer.Importer, v *validation.Validator) *PropertyHandler {
	return &PropertyHandler{properties: ps, importer: imp, validator: v}
}

// canManage reports whether the optional caller may see inactive listings.
func canManage(c echo.Context) bool {
	id, ok := session.FromEcho(c)
	return ok && id.Can(session.ManageProperties)
}

func (h *PropertyHandler) bindQuery(c echo.Context) (models.PropertyListQuery, error) {
	var q models.PropertyListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, domain.NewBadRequestError("Invalid query parameters")
	}
	if err := h.validator.SanitizeAndValidate(&q); err != nil {
		return q, err
	}
	return q, nil
}

// List godoc
// @Summary List properties
// @Description Public catalogue. Admins may pass include_inactive=true.
// @Tags Properties
// @Produce json
// @Param category query string false "RENT or SALE"
// @Param type query string false "Property type"
// @Param city query string false "City"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Success 200 {object} models.ListResponse[schema.Property]
// @Router /api/properties [get]
func (h *PropertyHandler) List(c echo.Context) error {
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, page, err := h.properties.List(ctx, q, q.IncludeAll && canManage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ListResponse[schema.Property]{Data: rows, Pagination: page})
}

// Search godoc
// @Summary Search properties
// @Tags Properties
// @Produce json
// @Param q query string true "Free text"
// @Success 200 {object} models.ListResponse[schema.Property]
// @Failure 400 {object} models.ErrorResponse
// @Router /api/properties/search [get]
func (h *PropertyHandler) Search(c echo.Context) error {
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, page, err := h.properties.Search(ctx, q, q.IncludeAll && canManage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ListResponse[schema.Property]{Data: rows, Pagination: page})
}

// Featured godoc
// @Summary Featured properties
// @Tags Properties
// @Produce json
// @Param limit query int false "Max listings (max 24)" default(6)
// @Success 200 {object} models.DataResponse[schema.Property]
// @Router /api/properties/featured [get]
func (h *PropertyHandler) Featured(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.properties.Featured(ctx, queryInt(c, "limit", 6, 24))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.DataResponse[schema.Property]{Data: rows})
}

// Get godoc
// @Summary Get property
// @Description Counts a view
// @Tags Properties
// @Produce json
// @Param id path int true "Property ID"
// @Success 200 {object} schema.Property
// @Failure 404 {object} models.ErrorResponse
// @Router /api/properties/{id} [get]
func (h *PropertyHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id", "property")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	p, err := h.properties.View(ctx, id, canManage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Create godoc
// @Summary Create property
// @Tags Properties
// @Accept json
// @Produce json
// @Param request body models.PropertyCreateRequest true "Listing"
// @Success 201 {object} schema.Property
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/properties [post]
func (h *PropertyHandler) Create(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req models.PropertyCreateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	p, err := h.properties.Create(ctx, actor.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Update godoc
// @Summary Update property
// @Tags Properties
// @Accept json
// @Produce json
// @Param id path int true "Property ID"
// @Param request body models.PropertyUpdateRequest true "Changes"
// @Success 200 {object} schema.Property
// @Security BearerAuth
// @Router /api/properties/{id} [put]
func (h *PropertyHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id", "property")
	if err != nil {
		return err
	}
	var req models.PropertyUpdateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	p, err := h.properties.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete godoc
// @Summary Delete property
// @Description Deactivates the listing; hard=true removes it
// @Tags Properties
// @Produce json
// @Param id path int true "Property ID"
// @Param hard query bool false "Remove permanently"
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /api/properties/{id} [delete]
func (h *PropertyHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id", "property")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	hard := queryBool(c, "hard")
	if err := h.properties.Delete(ctx, id, hard); err != nil {
		return err
	}
	msg := "Property deactivated"
	if hard {
		msg = "Property deleted"
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: msg})
}

// Stats godoc
// @Summary Catalogue statistics
// @Tags Properties
// @Produce json
// @Success 200 {object} models.PropertyStats
// @Security BearerAuth
// @Router /api/properties/stats [get]
func (h *PropertyHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	stats, err := h.properties.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// BulkUpdate godoc
// @Summary Bulk update properties
// @Tags Properties
// @Accept json
// @Produce json
// @Param request body models.PropertyBulkUpdateRequest true "Listing ids and changes"
// @Success 200 {object} models.BulkUpdateResponse
// @Security BearerAuth
// @Router /api/properties/bulk-update [post]
func (h *PropertyHandler) BulkUpdate(c echo.Context) error {
	var req models.PropertyBulkUpdateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	n, err := h.properties.BulkUpdate(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.BulkUpdateResponse{Updated: n})
}

// Import godoc
// @Summary Import properties
// @Description Multipart upload of a CSV or XLSX file under "file". Valid rows are created, the rest reported.
// @Tags Properties
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX"
// @Success 200 {object} models.ImportResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/properties/import [post]
func (h *PropertyHandler) Import(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		return domain.NewBadRequestError("A file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return domain.NewBadRequestError("Could not read the uploaded file")
	}
	defer f.Close()

	ctx, cancel := requestContext(c, 2*time.Minute)
	defer cancel()

	resp, err := h.importer.Import(ctx, actor.ID, fh.Filename, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// UploadMedia godoc
// @Summary Upload property image
// @Tags Properties
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Property ID"
// @Param file formData file true "JPEG, PNG, WebP or GIF"
// @Success 201 {object} models.MediaResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/properties/{id}/media [post]
func (h *PropertyHandler) UploadMedia(c echo.Context) error {
	id, err := pathID(c, "id", "property")
	if err != nil {
		return err
	}
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		return domain.NewBadRequestError("A file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return domain.NewBadRequestError("Could not read the uploaded file")
	}
	defer f.Close()

	img, err := storage.ReadImage(f)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, time.Minute)
	defer cancel()

	resp, err := h.properties.AddImage(ctx, id, img)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

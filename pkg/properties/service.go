package properties

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/cache"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Cache keys. Every mutation drops everything under cachePrefix.
const (
	cachePrefix = "properties:"
	featuredKey = cachePrefix + "featured:%d"
	statsKey    = cachePrefix + "stats"
	cacheTTL    = 10 * time.Minute

	defaultLimit    = 12
	defaultFeatured = 6
	maxImages       = 50
)

// Service handles property listings
type Service struct {
	db      *gorm.DB
	cache   *cache.Client
	media   domain.MediaStore
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewService creates a new property service. cache and media may be nil.
func NewService(db *gorm.DB, c *cache.Client, media domain.MediaStore, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{db: db, cache: c, media: media, metrics: m, log: logger.OrNop(log)}
}

func (s *Service) find(q *gorm.DB, id uint, includeInactive bool) (*schema.Property, error) {
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var p schema.Property
	if err := q.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Property")
		}
		return nil, fmt.Errorf("failed to fetch property: %w", err)
	}
	return &p, nil
}

// Get returns a listing. Inactive listings are only visible with includeInactive.
func (s *Service) Get(ctx context.Context, id uint, includeInactive bool) (*schema.Property, error) {
	return s.find(s.db.WithContext(ctx), id, includeInactive)
}

// View returns a listing and counts the view.
func (s *Service) View(ctx context.Context, id uint, includeInactive bool) (*schema.Property, error) {
	p, err := s.Get(ctx, id, includeInactive)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&schema.Property{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, fmt.Errorf("failed to count view: %w", err)
	}
	p.Views++
	s.metrics.RecordPropertyView()
	return p, nil
}

// List returns one page of listings matching q. Inactive listings are only
// included when includeInactive is set.
func (s *Service) List(ctx context.Context, q models.PropertyListQuery, includeInactive bool) ([]schema.Property, models.PaginationInfo, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	query := s.db.WithContext(ctx).Model(&schema.Property{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if q.City != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(q.City))
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}
	if q.Bedrooms != nil {
		query = query.Where("bedrooms >= ?", *q.Bedrooms)
	}
	if q.MinArea != nil {
		query = query.Where("area >= ?", *q.MinArea)
	}
	if q.Featured != nil {
		query = query.Where("is_featured = ?", *q.Featured)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ? OR LOWER(city) LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to count properties: %w", err)
	}

	sort := "created_at"
	if q.Sort != "" {
		sort = q.Sort
	}
	dir := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		dir = "ASC"
	}

	var out []schema.Property
	err := query.Order(sort + " " + dir).Order("id DESC").
		Limit(q.Limit).Offset((q.Page - 1) * q.Limit).
		Find(&out).Error
	if err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to list properties: %w", err)
	}
	return out, models.NewPaginationInfo(q.Page, q.Limit, total), nil
}

// Search is List with a mandatory free-text query.
func (s *Service) Search(ctx context.Context, q models.PropertyListQuery, includeInactive bool) ([]schema.Property, models.PaginationInfo, error) {
	if strings.TrimSpace(q.Search) == "" {
		return nil, models.PaginationInfo{}, domain.NewBadRequestError("Search query is required")
	}
	return s.List(ctx, q, includeInactive)
}

// remember wraps cache.Remember and reports hits and misses.
func remember[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	missed := false
	v, err := cache.Remember(ctx, s.cache, key, cacheTTL, func(ctx context.Context) (T, error) {
		missed = true
		return load(ctx)
	})
	if err == nil && s.cache != nil {
		if missed {
			s.metrics.RecordCacheMiss("properties")
		} else {
			s.metrics.RecordCacheHit("properties")
		}
	}
	return v, err
}

// Featured returns the newest active featured listings, cached.
func (s *Service) Featured(ctx context.Context, limit int) ([]schema.Property, error) {
	if limit <= 0 || limit > 50 {
		limit = defaultFeatured
	}
	return remember(ctx, s, fmt.Sprintf(featuredKey, limit), func(ctx context.Context) ([]schema.Property, error) {
		out := []schema.Property{}
		err := s.db.WithContext(ctx).
			Where("is_active = ? AND is_featured = ?", true, true).
			Order("created_at DESC").Order("id DESC").
			Limit(limit).
			Find(&out).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch featured properties: %w", err)
		}
		return out, nil
	})
}

// Stats summarises the catalogue, cached.
func (s *Service) Stats(ctx context.Context) (*models.PropertyStats, error) {
	return remember(ctx, s, statsKey, s.computeStats)
}

func (s *Service) computeStats(ctx context.Context) (*models.PropertyStats, error) {
	db := s.db.WithContext(ctx)
	st := &models.PropertyStats{
		ByCategory:   map[string]int64{},
		ByType:       map[string]int64{},
		AveragePrice: map[string]float64{},
		TopCities:    []models.CityCount{},
	}

	var totals struct {
		Total    int64
		Active   int64
		Featured int64
		Views    int64
	}
	err := db.Model(&schema.Property{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, " +
			"COALESCE(SUM(CASE WHEN is_active AND is_featured THEN 1 ELSE 0 END), 0) AS featured, " +
			"COALESCE(SUM(views), 0) AS views").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}
	st.Total, st.Active, st.Featured, st.TotalViews = totals.Total, totals.Active, totals.Featured, totals.Views
	st.Inactive = st.Total - st.Active

	var byCategory []struct {
		Category string
		Count    int64
		AvgPrice float64
	}
	if err := db.Model(&schema.Property{}).
		Select("category, COUNT(*) AS count, AVG(price) AS avg_price").
		Where("is_active = ?", true).
		Group("category").
		Scan(&byCategory).Error; err != nil {
		return nil, fmt.Errorf("failed to group properties by category: %w", err)
	}
	for _, r := range byCategory {
		st.ByCategory[r.Category] = r.Count
		st.AveragePrice[r.Category] = r.AvgPrice
	}

	var byType []struct {
		Type  string
		Count int64
	}
	if err := db.Model(&schema.Property{}).
		Select("type, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to group properties by type: %w", err)
	}
	for _, r := range byType {
		st.ByType[r.Type] = r.Count
	}

	if err := db.Model(&schema.Property{}).
		Select("city, COUNT(*) AS count").
		Where("is_active = ? AND city <> ''", true).
		Group("city").
		Order("COUNT(*) DESC").Order("city ASC").
		Limit(10).
		Scan(&st.TopCities).Error; err != nil {
		return nil, fmt.Errorf("failed to group properties by city: %w", err)
	}
	return st, nil
}

// invalidate drops every cached listing view.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePattern(ctx, cachePrefix+"*"); err != nil {
		s.log.Warn("failed to invalidate property cache", "error", err)
	}
}

func newProperty(req models.PropertyCreateRequest, actorID *uint) *schema.Property {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	images := req.Images
	if images == nil {
		images = []string{}
	}
	features := req.Features
	if features == nil {
		features = []string{}
	}
	return &schema.Property{
		Title:        req.Title,
		Description:  req.Description,
		Category:     schema.PropertyCategory(req.Category),
		Type:         req.Type,
		Price:        req.Price,
		PriceDisplay: req.PriceDisplay,
		Location:     req.Location,
		City:         req.City,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		Area:         req.Area,
		Images:       datatypes.JSONSlice[string](images),
		Features:     datatypes.JSONSlice[string](features),
		IsActive:     active,
		IsFeatured:   req.IsFeatured,
		CreatedByID:  actorID,
	}
}

// Create stores a new listing. Listings are active unless is_active is false.
func (s *Service) Create(ctx context.Context, actorID uint, req models.PropertyCreateRequest) (*schema.Property, error) {
	p := newProperty(req, &actorID)
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	s.invalidate(ctx)
	return p, nil
}

// CreateBatch stores many listings in one transaction and returns how many
// were written.
func (s *Service) CreateBatch(ctx context.Context, actorID uint, reqs []models.PropertyCreateRequest) (int, error) {
	if len(reqs) == 0 {
		return 0, nil
	}
	rows := make([]*schema.Property, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, newProperty(r, &actorID))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import properties: %w", err)
	}
	s.metrics.RecordPropertiesImported(len(rows))
	s.invalidate(ctx)
	return len(rows), nil
}

// Update applies a partial update to a listing, active or not.
func (s *Service) Update(ctx context.Context, id uint, req models.PropertyUpdateRequest) (*schema.Property, error) {
	db := s.db.WithContext(ctx)
	p, err := s.find(db, id, true)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	set := func(col string, v any) { changes[col] = v }
	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Category != nil {
		set("category", *req.Category)
	}
	if req.Type != nil {
		set("type", *req.Type)
	}
	if req.Price != nil {
		set("price", *req.Price)
	}
	if req.PriceDisplay != nil {
		set("price_display", *req.PriceDisplay)
	}
	if req.Location != nil {
		set("location", *req.Location)
	}
	if req.City != nil {
		set("city", *req.City)
	}
	if req.Bedrooms != nil {
		set("bedrooms", *req.Bedrooms)
	}
	if req.Bathrooms != nil {
		set("bathrooms", *req.Bathrooms)
	}
	if req.Area != nil {
		set("area", *req.Area)
	}
	if req.Images != nil {
		set("images", datatypes.JSONSlice[string](*req.Images))
	}
	if req.Features != nil {
		set("features", datatypes.JSONSlice[string](*req.Features))
	}
	if req.IsActive != nil {
		set("is_active", *req.IsActive)
	}
	if req.IsFeatured != nil {
		set("is_featured", *req.IsFeatured)
	}

	if len(changes) > 0 {
		if err := db.Model(&schema.Property{}).Where("id = ?", p.ID).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("failed to update property: %w", err)
		}
		s.invalidate(ctx)
	}
	return s.find(db, id, true)
}

// Delete deactivates a listing, or removes it for good when hard is set.
// Leads interested in a removed listing keep their row but lose the link.
func (s *Service) Delete(ctx context.Context, id uint, hard bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.find(tx, id, true)
		if err != nil {
			return err
		}
		if !hard {
			if err := tx.Model(&schema.Property{}).Where("id = ?", p.ID).Update("is_active", false).Error; err != nil {
				return fmt.Errorf("failed to deactivate property: %w", err)
			}
			return nil
		}
		if err := tx.Unscoped().Model(&schema.Lead{}).Where("property_id = ?", p.ID).
			Update("property_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach leads: %w", err)
		}
		if err := tx.Delete(p).Error; err != nil {
			return fmt.Errorf("failed to delete property: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// BulkUpdate applies the same flags or price to many listings.
func (s *Service) BulkUpdate(ctx context.Context, req models.PropertyBulkUpdateRequest) (int64, error) {
	changes := map[string]any{}
	if req.IsActive != nil {
		changes["is_active"] = *req.IsActive
	}
	if req.IsFeatured != nil {
		changes["is_featured"] = *req.IsFeatured
	}
	if req.Price != nil {
		changes["price"] = *req.Price
	}
	if len(changes) == 0 {
		return 0, domain.NewBadRequestError("Nothing to update")
	}

	res := s.db.WithContext(ctx).Model(&schema.Property{}).Where("id IN ?", req.IDs).Updates(changes)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update properties: %w", res.Error)
	}
	s.invalidate(ctx)
	return res.RowsAffected, nil
}

// AddImage stores an uploaded image and appends its URL to the listing.
func (s *Service) AddImage(ctx context.Context, id uint, img *storage.Image) (*models.MediaResponse, error) {
	if s.media == nil {
		return nil, domain.NewInternalError(errors.New("media storage not configured"))
	}
	db := s.db.WithContext(ctx)
	p, err := s.find(db, id, true)
	if err != nil {
		return nil, err
	}
	if len(p.Images) >= maxImages {
		return nil, domain.NewBadRequestError(fmt.Sprintf("A property can have at most %d images", maxImages))
	}

	key := storage.PropertyMediaKey(p.ID, img.Extension)
	url, err := s.media.Put(ctx, key, img.ContentType, bytes.NewReader(img.Data), int64(len(img.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	images := append(p.Images, url)
	if err := db.Model(&schema.Property{}).Where("id = ?", p.ID).Update("images", images).Error; err != nil {
		if derr := s.media.Delete(ctx, key); derr != nil {
			s.log.Warn("failed to clean up orphaned image", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("failed to save image: %w", err)
	}
	s.invalidate(ctx)
	return &models.MediaResponse{URL: url, Images: images}, nil
}

// Package testdata generates realistic CRM fixtures for seeding and tests.
package testdata

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Cities the generated leads and listings are located in.
var Cities = []string{
	"Madrid", "Barcelona", "Valencia", "Seville", "Malaga",
	"Alicante", "Marbella", "Bilbao", "Palma", "Zaragoza",
}

var propertyTypes = []string{"apartment", "house", "villa", "land", "commercial", "office", "studio"}

var features = []string{
	"terrace", "pool", "garden", "lift", "parking", "air conditioning",
	"sea view", "storage room", "furnished", "gym", "concierge", "fireplace",
}

// Listing title parts per property type.
var titleParts = map[string]struct {
	Adjectives []string
	Nouns      []string
}{
	"apartment":  {[]string{"Bright", "Renovated", "Modern", "Cosy", "Spacious"}, []string{"apartment", "flat", "penthouse"}},
	"house":      {[]string{"Family", "Detached", "Terraced", "Charming"}, []string{"house", "townhouse", "home"}},
	"villa":      {[]string{"Luxury", "Mediterranean", "Sea-view", "Private"}, []string{"villa", "estate"}},
	"land":       {[]string{"Buildable", "Rustic", "Urban"}, []string{"plot", "land"}},
	"commercial": {[]string{"Street-level", "Corner", "High-traffic"}, []string{"retail unit", "shop", "premises"}},
	"office":     {[]string{"Open-plan", "Prime", "Serviced"}, []string{"office", "workspace"}},
	"studio":     {[]string{"Compact", "Central", "Loft-style"}, []string{"studio"}},
}

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Count        int
	City         string // random when empty
	MaxAgeDays   int    // created_at spread, 0 means today
	EmailChance  float64
	PhoneChance  float64
	BudgetChance float64
	AssignTo     []uint // round-robin assignees, none leaves leads unassigned
}

// DefaultLeadConfig mirrors the completeness of real intake traffic.
func DefaultLeadConfig(count int) LeadGeneratorConfig {
	return LeadGeneratorConfig{
		Count:        count,
		MaxAgeDays:   60,
		EmailChance:  0.8,
		PhoneChance:  0.7,
		BudgetChance: 0.6,
	}
}

// Generator produces fixtures from a seeded faker, so a seed always yields
// the same data.
type Generator struct {
	f   *gofakeit.Faker
	now time.Time
}

// New creates a generator. Seed 0 picks a random seed.
func New(seed int64) *Generator {
	return &Generator{f: gofakeit.New(seed), now: time.Now().UTC()}
}

// Phone returns a US number that passes phone validation.
func (g *Generator) Phone() string {
	return fmt.Sprintf("(202) 456-%04d", g.f.Number(0, 9999))
}

// Email returns a unique-looking address at an example domain.
func (g *Generator) Email(name string) string {
	local := strings.ToLower(strings.Join(strings.Fields(name), "."))
	local = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, local)
	if local == "" {
		local = "contact"
	}
	return fmt.Sprintf("%s%d@example.com", local, g.f.Number(1, 999))
}

// User returns an active user with the given role. The password hash is
// left to the caller.
func (g *Generator) User(role schema.Role, passwordHash string) *schema.User {
	name := g.f.Name()
	return &schema.User{
		Email:        g.Email(name),
		PasswordHash: passwordHash,
		FullName:     name,
		Phone:        g.Phone(),
		Role:         role,
		IsActive:     true,
		MaxLeads:     schema.DefaultMaxLeads,
	}
}

func (g *Generator) pick(options []string) string {
	return g.f.RandomString(options)
}

func (g *Generator) weighted(options []string, weights []float32) string {
	opts := make([]any, len(options))
	for i, o := range options {
		opts[i] = o
	}
	v, err := g.f.Weighted(opts, weights)
	if err != nil {
		return options[0]
	}
	return v.(string)
}

func (g *Generator) budget(tx schema.TransactionType) (*float64, *float64) {
	lo, hi := 150000.0, 900000.0
	if tx == schema.TransactionRent {
		lo, hi = 500, 3500
	}
	from := math.Round(g.f.Float64Range(lo, hi)/50) * 50
	to := math.Round(from*g.f.Float64Range(1.1, 1.6)/50) * 50
	return &from, &to
}

// Lead generates a single lead with realistic data. Score is computed from
// the generated fields.
func (g *Generator) Lead(cfg LeadGeneratorConfig) schema.Lead {
	name := g.f.Name()
	city := cfg.City
	if city == "" {
		city = g.pick(Cities)
	}
	tx := schema.TransactionType(g.weighted([]string{"sale", "rent"}, []float32{3, 2}))
	l := schema.Lead{
		FullName:        name,
		City:            city,
		Message:         g.f.Sentence(g.f.Number(8, 20)),
		TransactionType: tx,
		PropertyType:    g.pick(propertyTypes),
		Status: schema.LeadStatus(g.weighted(
			[]string{"new", "contacted", "qualified", "viewing", "negotiating", "won", "lost"},
			[]float32{30, 20, 15, 10, 8, 7, 10})),
		Urgency: schema.Urgency(g.weighted(
			[]string{"low", "medium", "high", "critical"}, []float32{25, 45, 22, 8})),
		Source: schema.LeadSource(g.weighted(
			[]string{"website_form", "chatbot", "referral", "manual", "phone", "social"},
			[]float32{35, 15, 15, 15, 10, 10})),
		Notes:        datatypes.JSONSlice[schema.LeadNote]{},
		ChatMessages: datatypes.JSONSlice[schema.ChatMessage]{},
	}
	if g.f.Float64Range(0, 1) < cfg.EmailChance {
		l.Email = g.Email(name)
	}
	if g.f.Float64Range(0, 1) < cfg.PhoneChance {
		l.Phone = g.Phone()
	}
	if g.f.Float64Range(0, 1) < cfg.BudgetChance {
		l.BudgetMin, l.BudgetMax = g.budget(tx)
	}

	created := g.now
	if cfg.MaxAgeDays > 0 {
		created = g.f.DateRange(g.now.AddDate(0, 0, -cfg.MaxAgeDays), g.now).UTC()
	}
	l.CreatedAt = created
	l.UpdatedAt = created
	l.StatusChangedAt = created
	l.Score = leadscoring.ScoreLead(&l)
	return l
}

// Leads creates cfg.Count leads, assigning them round-robin to cfg.AssignTo.
func (g *Generator) Leads(cfg LeadGeneratorConfig) []schema.Lead {
	out := make([]schema.Lead, cfg.Count)
	for i := range out {
		out[i] = g.Lead(cfg)
		if len(cfg.AssignTo) > 0 {
			id := cfg.AssignTo[i%len(cfg.AssignTo)]
			out[i].AssignedToID = &id
		}
	}
	return out
}

// Property generates an active listing.
func (g *Generator) Property(createdBy *uint) schema.Property {
	typ := g.pick(propertyTypes)
	parts := titleParts[typ]
	city := g.pick(Cities)
	category := schema.CategorySale
	if g.f.Bool() {
		category = schema.CategoryRent
	}

	var price float64
	var display string
	if category == schema.CategoryRent {
		price = math.Round(g.f.Float64Range(450, 4000)/10) * 10
		display = fmt.Sprintf("€%.0f/month", price)
	} else {
		price = math.Round(g.f.Float64Range(90000, 1500000)/1000) * 1000
		display = fmt.Sprintf("€%.0f", price)
	}

	feats := append([]string(nil), features...)
	g.f.ShuffleStrings(feats)
	bedrooms := 0
	if typ != "land" && typ != "commercial" && typ != "office" {
		bedrooms = g.f.Number(1, 6)
	}

	return schema.Property{
		Title:        fmt.Sprintf("%s %s in %s", g.pick(parts.Adjectives), g.pick(parts.Nouns), city),
		Description:  g.f.Paragraph(2, 3, 12, "\n\n"),
		Category:     category,
		Type:         typ,
		Price:        price,
		PriceDisplay: display,
		Location:     g.f.Street(),
		City:         city,
		Bedrooms:     bedrooms,
		Bathrooms:    max(1, bedrooms/2),
		Area:         math.Round(g.f.Float64Range(35, 450)),
		Images: datatypes.JSONSlice[string]{
			g.f.ImageURL(1200, 800),
			g.f.ImageURL(1200, 800),
		},
		Features:    datatypes.JSONSlice[string](feats[:g.f.Number(2, 5)]),
		IsActive:    true,
		IsFeatured:  g.f.Number(1, 5) == 1,
		Views:       g.f.Number(0, 500),
		CreatedByID: createdBy,
	}
}

// Properties generates n listings.
func (g *Generator) Properties(n int, createdBy *uint) []schema.Property {
	out := make([]schema.Property, n)
	for i := range out {
		out[i] = g.Property(createdBy)
	}
	return out
}

// LeadCreateRequest generates a valid manual lead payload.
func (g *Generator) LeadCreateRequest() models.LeadCreateRequest {
	l := g.Lead(DefaultLeadConfig(1))
	return models.LeadCreateRequest{
		FullName:        l.FullName,
		Email:           g.Email(l.FullName),
		Phone:           g.Phone(),
		City:            l.City,
		Message:         l.Message,
		TransactionType: string(l.TransactionType),
		PropertyType:    l.PropertyType,
		BudgetMin:       l.BudgetMin,
		BudgetMax:       l.BudgetMax,
		Urgency:         string(l.Urgency),
		Source:          string(schema.SourceManual),
	}
}

// ContactForm generates a valid public enquiry.
func (g *Generator) ContactForm() models.ContactFormRequest {
	name := g.f.Name()
	return models.ContactFormRequest{
		Name:            name,
		Email:           g.Email(name),
		Phone:           g.Phone(),
		City:            g.pick(Cities),
		Message:         "I would like to arrange a visit. " + g.f.Sentence(10),
		TransactionType: g.weighted([]string{"sale", "rent"}, []float32{1, 1}),
	}
}

// BulkInsert inserts rows in batches for performance
func BulkInsert[T any](ctx context.Context, db *gorm.DB, rows []T, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if err := db.WithContext(ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert %d rows: %w", len(rows), err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jordanlanch/estatecrm/config"
	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/database"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/testdata"
	"gorm.io/gorm"
)

func main() {
	var (
		agents        = flag.Int("agents", 3, "number of agents to create")
		leadCount     = flag.Int("leads", 200, "number of leads to create")
		propertyCount = flag.Int("properties", 40, "number of listings to create")
		seed          = flag.Int64("seed", 42, "faker seed, 0 for random")
		adminEmail    = flag.String("admin-email", "admin@estatecrm.local", "admin login")
		password      = flag.String("password", "changeme123", "password for every seeded user")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	client, err := database.NewClient(cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	s := seeder{db: client.DB, gen: testdata.New(*seed), log: log}
	if err := s.run(context.Background(), *adminEmail, *password, *agents, *leadCount, *propertyCount); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

type seeder struct {
	db  *gorm.DB
	gen *testdata.Generator
	log logger.Logger
}

func (s seeder) run(ctx context.Context, adminEmail, password string, agents, leads, properties int) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin, err := s.admin(ctx, adminEmail, hash)
	if err != nil {
		return err
	}

	team := make([]*schema.User, 0, agents)
	for i := 0; i < agents; i++ {
		team = append(team, s.gen.User(schema.RoleAgent, hash))
	}
	if err := testdata.BulkInsert(ctx, s.db, team, 50); err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	ids := make([]uint, len(team))
	for i, u := range team {
		ids[i] = u.ID
		s.log.Info("agent created", "email", u.Email)
	}

	if err := testdata.BulkInsert(ctx, s.db, s.gen.Properties(properties, &admin.ID), 100); err != nil {
		return fmt.Errorf("properties: %w", err)
	}

	cfg := testdata.DefaultLeadConfig(leads)
	cfg.AssignTo = ids
	if err := testdata.BulkInsert(ctx, s.db, s.gen.Leads(cfg), 100); err != nil {
		return fmt.Errorf("leads: %w", err)
	}

	s.log.Info("database seeded",
		"admin", admin.Email,
		"agents", len(team),
		"properties", properties,
		"leads", leads,
	)
	return nil
}

// admin returns the existing admin with that email or creates it.
func (s seeder) admin(ctx context.Context, email, hash string) (*schema.User, error) {
	var u schema.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err == nil {
		s.log.Info("admin already exists", "email", email)
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = schema.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         schema.RoleAdmin,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	s.log.Info("admin created", "email", email)
	return &u, nil
}

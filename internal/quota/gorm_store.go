package quota

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&AuthorizationRecord{}, &ModelLimit{}, &UsageCounter{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindAuthorization loads the active record and its limits in position order.
func (s *GormStore) FindAuthorization(identityID string) (*AuthorizationRecord, error) {
	var rec AuthorizationRecord
	err := s.db.
		Preload("Models", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Where("identity_id = ? AND active", identityID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find authorization: %w", err)
	}
	return &rec, nil
}

// UsageFor reads the counter for (identity, model, day); missing rows are zero.
func (s *GormStore) UsageFor(identityID, modelName, day string) (int, error) {
	var counter UsageCounter
	err := s.db.
		Where("identity_id = ? AND model_name = ? AND usage_date = ?", identityID, modelName, day).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return counter.PromptsUsed, nil
}

// IncrementUsage upserts the daily counter. The unique index on
// (identity, model, day) makes concurrent first-of-day inserts converge.
func (s *GormStore) IncrementUsage(identityID, modelName, day string) error {
	counter := UsageCounter{
		IdentityID:  identityID,
		ModelName:   modelName,
		UsageDate:   day,
		PromptsUsed: 1,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity_id"}, {Name: "model_name"}, {Name: "usage_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"prompts_used": gorm.Expr("usage_counters.prompts_used + 1"),
			"updated_at":   time.Now().UTC(),
		}),
	}).Create(&counter).Error
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

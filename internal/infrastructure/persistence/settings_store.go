package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

// GormSettingsStore implements integration.SettingsStore using GORM
type GormSettingsStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSettingsStore creates a new GormSettingsStore
func NewGormSettingsStore(db *gorm.DB) *GormSettingsStore {
	return &GormSettingsStore{db: db, now: time.Now}
}

// Load returns the settings of the shop.
// A shop without a row gets the defaults, which are persisted so later edits start from them.
func (s *GormSettingsStore) Load(ctx context.Context, tenant string) (integration.PricingConfig, error) {
	var model models.PricingSettingsModel
	err := s.db.WithContext(ctx).Where("shop_domain = ?", tenant).First(&model).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return integration.PricingConfig{}, fmt.Errorf("failed to load settings of %s: %w", tenant, err)
	}

	defaults := integration.DefaultPricingConfig()
	model.FromDomain(tenant, defaults)
	model.CreatedAt = s.now()
	model.UpdatedAt = model.CreatedAt
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
	if err != nil {
		return integration.PricingConfig{}, fmt.Errorf("failed to store default settings of %s: %w", tenant, err)
	}
	return defaults, nil
}

// Save validates and upserts the settings of the shop
func (s *GormSettingsStore) Save(ctx context.Context, tenant string, cfg integration.PricingConfig) error {
	if tenant == "" {
		return integration.ErrInvalidTenant
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var model models.PricingSettingsModel
	model.FromDomain(tenant, cfg)
	model.CreatedAt = s.now()
	model.UpdatedAt = model.CreatedAt

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shop_domain"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vat_percent", "paypal_fee_percent", "secondary_fee_flat", "profit_margin_percent", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to store settings of %s: %w", tenant, err)
	}
	return nil
}

// Ensure GormSettingsStore implements integration.SettingsStore
var _ integration.SettingsStore = (*GormSettingsStore)(nil)

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

// GormCredentialStore implements integration.CredentialStore using GORM
type GormCredentialStore struct {
	db     *gorm.DB
	cipher *TokenCipher
	now    func() time.Time
}

// CredentialStoreOption configures a GormCredentialStore
type CredentialStoreOption func(*GormCredentialStore)

// WithTokenCipher seals tokens at rest
func WithTokenCipher(c *TokenCipher) CredentialStoreOption {
	return func(s *GormCredentialStore) {
		s.cipher = c
	}
}

// NewGormCredentialStore creates a new GormCredentialStore
func NewGormCredentialStore(db *gorm.DB, opts ...CredentialStoreOption) *GormCredentialStore {
	s := &GormCredentialStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the token of the shop when one is stored and not expired
func (s *GormCredentialStore) Get(ctx context.Context, tenant string) (string, bool, error) {
	var model models.ShopCredentialModel
	err := s.db.WithContext(ctx).Where("shop_domain = ?", tenant).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load credentials of %s: %w", tenant, err)
	}
	if !model.Live(s.now()) {
		return "", false, nil
	}
	token, err := s.openToken(tenant, model.AccessToken)
	if err != nil {
		return "", false, fmt.Errorf("failed to load credentials of %s: %w", tenant, err)
	}
	return token, true, nil
}

// Set upserts the token of the shop. A zero ttl never expires.
func (s *GormCredentialStore) Set(ctx context.Context, tenant, token string, ttl time.Duration) error {
	if tenant == "" {
		return integration.ErrInvalidTenant
	}

	stored := token
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(tenant, token)
		if err != nil {
			return fmt.Errorf("failed to seal credentials of %s: %w", tenant, err)
		}
		stored = sealed
	}

	now := s.now()
	model := models.ShopCredentialModel{
		ShopModel:   models.ShopModel{ShopDomain: tenant, CreatedAt: now, UpdatedAt: now},
		AccessToken: stored,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		model.ExpiresAt = &expiresAt
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "expires_at", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to store credentials of %s: %w", tenant, err)
	}
	return nil
}

// Delete removes the token of the shop. Deleting a missing shop is not an error.
func (s *GormCredentialStore) Delete(ctx context.Context, tenant string) error {
	err := s.db.WithContext(ctx).
		Where("shop_domain = ?", tenant).
		Delete(&models.ShopCredentialModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete credentials of %s: %w", tenant, err)
	}
	return nil
}

// ListTenants returns every shop with a live token, ordered by domain
func (s *GormCredentialStore) ListTenants(ctx context.Context) ([]string, error) {
	var shops []string
	err := s.db.WithContext(ctx).
		Model(&models.ShopCredentialModel{}).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("shop_domain ASC").
		Pluck("shop_domain", &shops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, nil
}

func (s *GormCredentialStore) openToken(tenant, stored string) (string, error) {
	if s.cipher == nil {
		if isSealedToken(stored) {
			return "", ErrUndecryptableToken
		}
		return stored, nil
	}
	return s.cipher.Open(tenant, stored)
}

// Ensure GormCredentialStore implements integration.CredentialStore
var _ integration.CredentialStore = (*GormCredentialStore)(nil)

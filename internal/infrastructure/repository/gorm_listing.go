// Package repository holds the ListingRepository implementations: SQL through gorm, Firestore,
// and a Redis read-through cache that wraps either.
package repository

import (
	"context"
	"errors"
	"time"

	"landlease/internal/domain"

	"gorm.io/gorm"
)

// SQLListingRepository stores listings in the "Listings" table.
type SQLListingRepository struct {
	DB  *gorm.DB
	Now func() time.Time
}

var _ domain.ListingRepository = (*SQLListingRepository)(nil)

func (r *SQLListingRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *SQLListingRepository) Create(ctx context.Context, l *domain.Listing) (string, error) {
	l.ID = ""
	l.CreatedAt = r.now()
	if err := r.DB.WithContext(ctx).Create(l).Error; err != nil {
		return "", domain.PersistenceError("Failed to save listing", err)
	}
	return l.ID, nil
}

func (r *SQLListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	var out []domain.Listing
	err := r.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order(`"createdAt" DESC`).
		Find(&out).Error
	if err != nil {
		return nil, domain.PersistenceError("Failed to fetch listings", err)
	}
	return out, nil
}

// Search loads the whole table and filters in memory. Substring matching on free text gains
// nothing from an index, and the corpus is small.
func (r *SQLListingRepository) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	var all []domain.Listing
	if err := r.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, domain.PersistenceError("Failed to search listings", err)
	}
	return c.Filter(all), nil
}

func (r *SQLListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	err := r.DB.WithContext(ctx).Where("listing_id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError("Listing not found")
	}
	if err != nil {
		return nil, domain.PersistenceError("Failed to fetch listing", err)
	}
	return &l, nil
}

func (r *SQLListingRepository) Delete(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("listing_id = ?", id).Delete(&domain.Listing{})
	if res.Error != nil {
		return domain.PersistenceError("Failed to delete listing", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError("Listing not found")
	}
	return nil
}

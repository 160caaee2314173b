package listingevents

import (
	"context"

	"landlease/internal/domain"

	"gorm.io/gorm"
)

// Service reads the append-only CREATED/DELETED trail written by the listing lifecycle.
type Service struct {
	DB *gorm.DB
}

// ListByOwner returns the owner's events, oldest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]domain.ListingEvent, error) {
	if ownerID == "" {
		return nil, domain.ValidationError("Owner ID is required")
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, domain.PersistenceError("Failed to fetch listing events", err)
	}
	return events, nil
}

// ListByListing returns every event recorded for one listing, oldest first.
func (s *Service) ListByListing(ctx context.Context, listingID string) ([]domain.ListingEvent, error) {
	if listingID == "" {
		return nil, domain.ValidationError("Listing ID is required")
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, domain.PersistenceError("Failed to fetch listing events", err)
	}
	return events, nil
}

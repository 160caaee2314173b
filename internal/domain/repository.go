package domain

import "context"

// ListingRepository persists listings. Implementations return *Error values: NotFound from
// GetByID/Delete when the id does not exist, Persistence for every storage failure.
type ListingRepository interface {
	// Create stores l, assigning its id and creation time, and returns the new id.
	Create(ctx context.Context, l *Listing) (string, error)
	// ListByOwner returns the owner's listings, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Listing, error)
	// Search scans every listing and returns those matching c, in store order.
	Search(ctx context.Context, c SearchCriteria) ([]Listing, error)
	GetByID(ctx context.Context, id string) (*Listing, error)
	Delete(ctx context.Context, id string) error
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"landlease/internal/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreListingRepository keeps listings as documents of one collection ("lands" by default),
// using the document id as the listing id.
type FirestoreListingRepository struct {
	Client     *firestore.Client
	Collection string
}

var _ domain.ListingRepository = (*FirestoreListingRepository)(nil)

// landDoc is the stored document shape.
type landDoc struct {
	OwnerID          string            `firestore:"ownerId"`
	Location         string            `firestore:"location"`
	SizeAcres        float64           `firestore:"size"`
	MonthlyPrice     float64           `firestore:"price"`
	SoilType         string            `firestore:"soilType"`
	UsageSuitability string            `firestore:"usageSuitability"`
	PastUsage        string            `firestore:"pastUsage"`
	ContactInfo      string            `firestore:"contactInfo"`
	Images           []domain.AssetRef `firestore:"images"`
	Documents        []domain.AssetRef `firestore:"documents"`
	CreatedAt        time.Time         `firestore:"createdAt,serverTimestamp"`
}

func toDoc(l *domain.Listing) landDoc {
	return landDoc{
		OwnerID:          l.OwnerID,
		Location:         l.Location,
		SizeAcres:        l.SizeAcres,
		MonthlyPrice:     l.MonthlyPrice,
		SoilType:         l.SoilType,
		UsageSuitability: l.UsageSuitability,
		PastUsage:        l.PastUsage,
		ContactInfo:      l.ContactInfo,
		Images:           l.Images,
		Documents:        l.Documents,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (domain.Listing, error) {
	var d landDoc
	if err := snap.DataTo(&d); err != nil {
		return domain.Listing{}, fmt.Errorf("while unmarshaling listing %q: %w", snap.Ref.ID, err)
	}
	return domain.Listing{
		ID:               snap.Ref.ID,
		OwnerID:          d.OwnerID,
		Location:         d.Location,
		SizeAcres:        d.SizeAcres,
		MonthlyPrice:     d.MonthlyPrice,
		SoilType:         d.SoilType,
		UsageSuitability: d.UsageSuitability,
		PastUsage:        d.PastUsage,
		ContactInfo:      d.ContactInfo,
		Images:           domain.AssetRefs(d.Images),
		Documents:        domain.AssetRefs(d.Documents),
		CreatedAt:        d.CreatedAt,
	}, nil
}

func (r *FirestoreListingRepository) collection() *firestore.CollectionRef {
	name := r.Collection
	if name == "" {
		name = "lands"
	}
	return r.Client.Collection(name)
}

// Create adds a document; createdAt is assigned by the server.
func (r *FirestoreListingRepository) Create(ctx context.Context, l *domain.Listing) (string, error) {
	ref, wr, err := r.collection().Add(ctx, toDoc(l))
	if err != nil {
		return "", domain.PersistenceError("Failed to save listing", err)
	}
	l.ID = ref.ID
	l.CreatedAt = wr.UpdateTime
	return ref.ID, nil
}

// ListByOwner filters on ownerId and sorts here, so no composite index is needed.
func (r *FirestoreListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	out, err := r.collect(ctx, r.collection().Where("ownerId", "==", ownerID).Documents(ctx))
	if err != nil {
		return nil, domain.PersistenceError("Failed to fetch listings", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *FirestoreListingRepository) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	all, err := r.collect(ctx, r.collection().Documents(ctx))
	if err != nil {
		return nil, domain.PersistenceError("Failed to search listings", err)
	}
	return c.Filter(all), nil
}

func (r *FirestoreListingRepository) collect(ctx context.Context, it *firestore.DocumentIterator) ([]domain.Listing, error) {
	defer it.Stop()
	var out []domain.Listing
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		l, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *FirestoreListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	snap, err := r.collection().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.NotFoundError("Listing not found")
	}
	if err != nil {
		return nil, domain.PersistenceError("Failed to fetch listing", err)
	}
	l, err := fromSnapshot(snap)
	if err != nil {
		return nil, domain.PersistenceError("Failed to fetch listing", err)
	}
	return &l, nil
}

// Delete requires the document to exist, so a concurrent delete surfaces as NotFound.
func (r *FirestoreListingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.collection().Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return domain.NotFoundError("Listing not found")
	}
	if err != nil {
		return domain.PersistenceError("Failed to delete listing", err)
	}
	return nil
}

package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetKind classifies an uploaded binary. Stores that need a per-kind deletion path branch on it.
type AssetKind string

const (
	AssetKindImage    AssetKind = "image"
	AssetKindDocument AssetKind = "document"
)

// ParseAssetKind maps provider and client spellings, including MIME types, onto the two kinds.
// Anything that is not an image is treated as a document.
func ParseAssetKind(s string) AssetKind {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "auto":
		return ""
	case s == "image" || s == "images" || s == "img" || strings.HasPrefix(s, "image/"):
		return AssetKindImage
	default:
		return AssetKindDocument
	}
}

// AssetRef is a handle to one binary held by the asset store.
type AssetRef struct {
	URL        string    `json:"url" firestore:"url"`
	ExternalID string    `json:"externalId" firestore:"externalId"`
	Kind       AssetKind `json:"kind" firestore:"kind"`

	// MimeType is what the store reported at upload. It is not persisted with the listing.
	MimeType string `json:"-" firestore:"-"`
}

// AssetRefs is stored as a JSON column and always marshals as an array, never null.
type AssetRefs []AssetRef

func (a AssetRefs) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]AssetRef(a))
}

// Scan implements sql.Scanner for reading from DB (json column).
func (a *AssetRefs) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = AssetRefs{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for AssetRefs")
	}
	if len(raw) == 0 {
		*a = AssetRefs{}
		return nil
	}
	var refs []AssetRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return err
	}
	*a = refs
	return nil
}

// Value implements driver.Valuer for writing to DB.
func (a AssetRefs) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	bs, err := json.Marshal([]AssetRef(a))
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// Listing is one land-lease offer. It is never edited after creation.
type Listing struct {
	ID               string    `gorm:"column:listing_id;type:varchar(64);primaryKey" json:"id"`
	OwnerID          string    `gorm:"column:owner_id;type:varchar(128);not null;index" json:"ownerId"`
	Location         string    `gorm:"column:location;not null" json:"location"`
	SizeAcres        float64   `gorm:"column:size_acres;not null" json:"sizeAcres"`
	MonthlyPrice     float64   `gorm:"column:monthly_price;not null" json:"monthlyPrice"`
	SoilType         string    `gorm:"column:soil_type" json:"soilType"`
	UsageSuitability string    `gorm:"column:usage_suitability" json:"usageSuitability"`
	PastUsage        string    `gorm:"column:past_usage" json:"pastUsage"`
	ContactInfo      string    `gorm:"column:contact_info" json:"contactInfo"`
	Images           AssetRefs `gorm:"column:images;type:json" json:"images"`
	Documents        AssetRefs `gorm:"column:documents;type:json" json:"documents"`
	CreatedAt        time.Time `gorm:"column:createdAt;autoCreateTime:false" json:"createdAt"`
}

func (Listing) TableName() string {
	return "Listings"
}

// BeforeCreate sets listing_id if not already set.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Assets returns every asset the listing references, images first.
func (l *Listing) Assets() []AssetRef {
	out := make([]AssetRef, 0, len(l.Images)+len(l.Documents))
	out = append(out, l.Images...)
	out = append(out, l.Documents...)
	return out
}

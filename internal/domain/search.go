package domain

import (
	"math"
	"strings"
)

// SearchCriteria filters listings during a full scan. Empty text terms match everything;
// a nil price bound means 0 (min) or +Inf (max).
type SearchCriteria struct {
	Location         string
	SoilType         string
	UsageSuitability string
	PriceMin         *float64
	PriceMax         *float64
}

// Bounds returns the inclusive price range with defaults applied.
func (c SearchCriteria) Bounds() (float64, float64) {
	lo, hi := 0.0, math.Inf(1)
	if c.PriceMin != nil {
		lo = *c.PriceMin
	}
	if c.PriceMax != nil {
		hi = *c.PriceMax
	}
	return lo, hi
}

// Matches evaluates the predicate against one listing.
func (c SearchCriteria) Matches(l Listing) bool {
	if !containsFold(l.Location, c.Location) ||
		!containsFold(l.SoilType, c.SoilType) ||
		!containsFold(l.UsageSuitability, c.UsageSuitability) {
		return false
	}
	lo, hi := c.Bounds()
	return l.MonthlyPrice >= lo && l.MonthlyPrice <= hi
}

// Filter returns the listings matching c, preserving input order.
func (c SearchCriteria) Filter(listings []Listing) []Listing {
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if c.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func containsFold(field, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(field), strings.ToLower(term))
}

package deal

import (
	"time"
)

// Deal is the canonical promotional-item record. One row exists per
// (AreaKey, MerchantID, SourceItemID); re-fetching an area upserts
// rather than duplicating.
type Deal struct {
	ID              string
	AreaKey         string
	MerchantID      string
	MerchantName    string
	SourceItemID    string
	Name            string
	Description     string
	Category        string
	Price           float64
	OriginalPrice   *float64
	DiscountPercent *float64
	ImageURL        string
	FlyerURL        string
	ValidFrom       time.Time
	ValidTo         *time.Time
	FetchedAt       time.Time
}

// Savings returns the absolute discount when the original price is known.
func (d Deal) Savings() float64 {
	if d.OriginalPrice != nil && *d.OriginalPrice > d.Price {
		return *d.OriginalPrice - d.Price
	}
	return 0
}

// Expired reports whether the deal should be excluded from reads: its
// sale window ended or it aged past the freshness window.
func (d Deal) Expired(now time.Time, freshnessWindow time.Duration) bool {
	if d.ValidTo != nil && d.ValidTo.Before(now) {
		return true
	}
	return d.FetchedAt.Add(freshnessWindow).Before(now)
}

// SkippedItem records a vendor item the normalizer dropped instead of
// guessing at its contents.
type SkippedItem struct {
	Name   string
	Reason string
}

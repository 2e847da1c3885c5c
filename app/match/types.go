package match

import (
	"time"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
)

// DealReader is the read-only slice of the store the comparator needs.
type DealReader interface {
	Query(areaKey string, f database.Filters, now time.Time) ([]deal.Deal, error)
}

// ComparisonResult ranks the deals matched for a target product,
// cheapest first. It is derived per request and never persisted.
type ComparisonResult struct {
	Target              string      `json:"target"`
	Deals               []deal.Deal `json:"deals"`
	BestDeal            *deal.Deal  `json:"best_deal,omitempty"`
	MaxSavings          float64     `json:"max_savings"`
	TotalStoresCompared int         `json:"total_stores_compared"`
}

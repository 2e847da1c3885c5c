package query

import (
	"sort"
	"time"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Sort string

const (
	SortPriceAsc     Sort = "price_asc"
	SortDiscountDesc Sort = "discount_desc"
	SortNameAsc      Sort = "name_asc"
)

type Page struct {
	Number int
	Size   int
}

// PageResult is one page of deals plus enough metadata for the caller
// to continue paginating.
type PageResult struct {
	Deals    []deal.Deal `json:"deals"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	HasMore  bool        `json:"has_more"`
}

type DealReader interface {
	Query(areaKey string, f database.Filters, now time.Time) ([]deal.Deal, error)
}

// Service is the read-only listing surface over cached deals. Filtering
// is pushed down to the store; only sort variants and pagination happen
// here.
type Service struct {
	store DealReader
}

func NewService(store DealReader) *Service {
	return &Service{store: store}
}

func (s *Service) ListDeals(areaKey string, f database.Filters, sortBy Sort, page Page, now time.Time) (PageResult, error) {
	deals, err := s.store.Query(areaKey, f, now)
	if err != nil {
		return PageResult{}, err
	}

	applySort(deals, sortBy)

	if page.Size <= 0 {
		page.Size = defaultPageSize
	}
	if page.Size > maxPageSize {
		page.Size = maxPageSize
	}
	if page.Number < 1 {
		page.Number = 1
	}

	total := len(deals)
	start := (page.Number - 1) * page.Size
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	return PageResult{
		Deals:    deals[start:end],
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
		HasMore:  end < total,
	}, nil
}

// applySort reorders in place. An unset sort lists the biggest
// discounts first, with undiscounted deals last; ties keep the store's
// price-ascending order. Explicit price_asc is a no-op since the store
// already returns price ascending.
func applySort(deals []deal.Deal, sortBy Sort) {
	switch sortBy {
	case SortDiscountDesc, "":
		sort.SliceStable(deals, func(i, j int) bool {
			return discountOf(deals[i]) > discountOf(deals[j])
		})
	case SortNameAsc:
		sort.SliceStable(deals, func(i, j int) bool {
			if deals[i].Name != deals[j].Name {
				return deals[i].Name < deals[j].Name
			}
			return deals[i].Price < deals[j].Price
		})
	}
}

func discountOf(d deal.Deal) float64 {
	if d.DiscountPercent == nil {
		return 0
	}
	return *d.DiscountPercent
}

package api

import (
	"context"
	"time"

	"github.com/flyerflutter/dealcomb/app/area"
	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/locator"
	"github.com/flyerflutter/dealcomb/app/match"
	"github.com/flyerflutter/dealcomb/app/query"
	"github.com/flyerflutter/dealcomb/app/refresh"
)

type RefresherInterface interface {
	EnsureFresh(ctx context.Context, areaKey string) (refresh.Status, error)
	TriggerRefresh(areaKey string) (bool, error)
}

var _ RefresherInterface = (*refresh.Coordinator)(nil)

type ComparatorInterface interface {
	Compare(areaKey, productName string, now time.Time) (match.ComparisonResult, error)
}

var _ ComparatorInterface = (*match.Comparator)(nil)

type DealStatsInterface interface {
	Stats() (database.Stats, error)
	CountForArea(areaKey string, now time.Time) (int, error)
}

var _ DealStatsInterface = (*database.DealRepository)(nil)

type AreaFreshnessInterface interface {
	Get(areaKey string) (*database.AreaFreshness, error)
}

var _ AreaFreshnessInterface = (*database.AreaRepository)(nil)

type Handler struct {
	areas       *area.ConfigCache
	coordinator RefresherInterface
	deals       *query.Service
	comparator  ComparatorInterface
	dealStats   DealStatsInterface
	areaRepo    AreaFreshnessInterface
	stores      locator.Provider // optional, nil disables distance annotation
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flyerflutter/dealcomb/app/area"
	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/flipp"
	"github.com/flyerflutter/dealcomb/app/locator"
	"github.com/flyerflutter/dealcomb/app/query"
	"github.com/flyerflutter/dealcomb/app/refresh"
)

func NewHandler(areas *area.ConfigCache, coordinator RefresherInterface, deals *query.Service,
	comparator ComparatorInterface, dealStats DealStatsInterface, areaRepo AreaFreshnessInterface,
	stores locator.Provider) *Handler {
	return &Handler{
		areas:       areas,
		coordinator: coordinator,
		deals:       deals,
		comparator:  comparator,
		dealStats:   dealStats,
		areaRepo:    areaRepo,
		stores:      stores,
	}
}

// GetDeals serves the cached deals for an area, refreshing first when
// the cache is stale. A failed refresh over existing data degrades to
// stale results instead of an error.
func (h *Handler) GetDeals(c *gin.Context) {
	areaKey, err := flipp.NormalizeAreaKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area key: expected a Canadian postal code"})
		return
	}

	status, err := h.coordinator.EnsureFresh(c.Request.Context(), areaKey)
	if err != nil {
		h.renderRefreshError(c, areaKey, err)
		return
	}

	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page := query.Page{}
	if v := c.Query("page"); v != "" {
		page.Number, _ = strconv.Atoi(v)
	}
	if v := c.Query("page_size"); v != "" {
		page.Size, _ = strconv.Atoi(v)
	}

	result, err := h.deals.ListDeals(areaKey, filters, query.Sort(c.Query("sort")), page, time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "list_deals", "area", areaKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Deal store unavailable"})
		return
	}

	response := gin.H{
		"area":      areaKey,
		"freshness": string(status),
		"deals":     result.Deals,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
		"has_more":  result.HasMore,
	}

	if stores := h.nearbyStores(c); stores != nil {
		response["nearby_stores"] = stores
	}

	c.Header("X-Deal-Freshness", string(status))
	c.JSON(http.StatusOK, response)
}

// nearbyStores annotates a listing with merchant distances when a
// locator is configured and the caller supplied coordinates.
func (h *Handler) nearbyStores(c *gin.Context) []gin.H {
	if h.stores == nil {
		return nil
	}

	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		return nil
	}

	radiusKm := 10.0
	if v := c.Query("radius"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			radiusKm = parsed
		}
	}

	locations, err := h.stores.Nearby(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		slog.Warn("Store locator lookup failed", "error", err)
		return nil
	}

	stores := make([]gin.H, 0, len(locations))
	for _, loc := range locations {
		stores = append(stores, gin.H{
			"merchant_id": loc.MerchantID,
			"name":        loc.Name,
			"distance_km": locator.Distance(lat, lng, loc.Latitude, loc.Longitude),
		})
	}
	return stores
}

// CompareDeals ranks matching deals for a product across merchants in
// an area, cheapest first.
func (h *Handler) CompareDeals(c *gin.Context) {
	areaKey, err := flipp.NormalizeAreaKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area key: expected a Canadian postal code"})
		return
	}

	product := strings.TrimSpace(c.Query("q"))
	if product == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing product query parameter 'q'"})
		return
	}

	status, err := h.coordinator.EnsureFresh(c.Request.Context(), areaKey)
	if err != nil {
		h.renderRefreshError(c, areaKey, err)
		return
	}

	result, err := h.comparator.Compare(areaKey, product, time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "compare", "area", areaKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Deal store unavailable"})
		return
	}

	c.Header("X-Deal-Freshness", string(status))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if stats, err := h.dealStats.Stats(); err == nil {
		health["deals"] = stats.TotalDeals
		health["areas"] = stats.TotalAreas
	}

	health["loaded_configurations"] = h.areas.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_configurations": h.areas.GetConfigCount(),
	}

	if s, err := h.dealStats.Stats(); err == nil {
		stats["total_deals"] = s.TotalDeals
		stats["total_areas"] = s.TotalAreas
	} else {
		slog.Error("Database error", "operation", "stats", "error", err)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListAreas(c *gin.Context) {
	configs := h.areas.GetConfigs()
	now := time.Now().UTC()

	areas := make([]map[string]interface{}, 0, len(configs))
	for _, areaConfig := range configs {
		info := map[string]interface{}{
			"key":              areaConfig.Key,
			"label":            areaConfig.Label,
			"enabled":          areaConfig.Settings.Enabled,
			"refresh_interval": (time.Duration(areaConfig.Settings.RefreshInterval) * time.Second).String(),
			"queries":          len(areaConfig.Queries),
		}

		if rec, err := h.areaRepo.Get(areaConfig.Key); err == nil && rec != nil {
			info["status"] = rec.Status
			info["last_refreshed_at"] = rec.LastRefreshedAt
			info["error_count"] = rec.ErrorCount
		}

		if count, err := h.dealStats.CountForArea(areaConfig.Key, now); err == nil {
			info["deal_count"] = count
		}

		areas = append(areas, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"areas": areas,
		"total": len(areas),
	})
}

// APIRefreshArea kicks off a background refresh without making the
// caller wait for the sweep.
func (h *Handler) APIRefreshArea(c *gin.Context) {
	areaKey := c.Param("key")

	started, err := h.coordinator.TriggerRefresh(areaKey)
	if err != nil {
		if errors.Is(err, flipp.ErrInvalidAreaKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area key"})
			return
		}
		slog.Error("Failed to trigger refresh", "area", areaKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger refresh"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"area":    areaKey,
		"started": started,
	})
}

func (h *Handler) renderRefreshError(c *gin.Context, areaKey string, err error) {
	switch {
	case errors.Is(err, flipp.ErrInvalidAreaKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid area key: expected a Canadian postal code"})
	case errors.Is(err, refresh.ErrNoDataAvailable):
		// Cold area and the refresh failed. Distinct from an empty
		// filtered result, which is served as 200 with zero deals.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Deal data temporarily unavailable for this area"})
	case errors.Is(err, database.ErrStoreUnavailable):
		slog.Error("Database error", "operation", "ensure_fresh", "area", areaKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Deal store unavailable"})
	default:
		slog.Error("Refresh error", "area", areaKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func parseFilters(c *gin.Context) (database.Filters, error) {
	var f database.Filters

	f.Category = c.Query("category")
	f.Search = c.Query("q")

	for param, target := range map[string]*float64{
		"min_price":    &f.MinPrice,
		"max_price":    &f.MaxPrice,
		"min_discount": &f.MinDiscount,
	} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return database.Filters{}, errors.New("invalid " + param + " parameter")
		}
		*target = parsed
	}

	if v := c.Query("merchants"); v != "" {
		f.Merchants = splitList(v)
	}
	if v := c.Query("exclude_merchants"); v != "" {
		f.BlockMerchants = splitList(v)
	}

	return f, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

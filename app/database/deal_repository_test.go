package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flyerflutter/dealcomb/app/deal"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func ptr[T any](v T) *T { return &v }

func testDeal(merchantID, sourceItemID, name string, price float64, fetchedAt time.Time) deal.Deal {
	return deal.Deal{
		AreaKey:      "M5V3A8",
		MerchantID:   merchantID,
		MerchantName: merchantID,
		SourceItemID: sourceItemID,
		Name:         name,
		Category:     "dairy",
		Price:        price,
		ValidFrom:    fetchedAt.Add(-24 * time.Hour),
		FetchedAt:    fetchedAt,
	}
}

func TestUpsertMany_InsertAndUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	d := testDeal("walmart", "item-1", "Milk 2%", 4.99, now)
	if err := repo.UpsertMany("M5V3A8", []deal.Deal{d}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	d.Price = 3.99
	d.Name = "Milk 2% 4L"
	if err := repo.UpsertMany("M5V3A8", []deal.Deal{d}); err != nil {
		t.Fatalf("update: %v", err)
	}

	deals, err := repo.Query("M5V3A8", Filters{}, now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("expected 1 deal after re-upsert, got %d", len(deals))
	}
	if deals[0].Price != 3.99 || deals[0].Name != "Milk 2% 4L" {
		t.Errorf("row not updated in place: %+v", deals[0])
	}
}

func TestUpsertMany_RejectsDuplicateIdentityInBatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	batch := []deal.Deal{
		testDeal("walmart", "item-1", "Milk", 4.99, now),
		testDeal("walmart", "item-1", "Milk again", 5.99, now),
	}
	if err := repo.UpsertMany("M5V3A8", batch); err == nil {
		t.Fatal("expected error for duplicate identity in batch")
	}
}

func TestQuery_Filters(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	cheese := testDeal("walmart", "item-1", "Cheddar Cheese", 6.99, now)
	bread := testDeal("metro", "item-2", "Whole Wheat Bread", 2.49, now)
	bread.Category = "bakery"
	bread.DiscountPercent = ptr(25.0)
	steak := testDeal("loblaws", "item-3", "Striploin Steak", 14.99, now)
	steak.Category = "meat"

	if err := repo.UpsertMany("M5V3A8", []deal.Deal{cheese, bread, steak}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"no filters sorted by price", Filters{}, []string{"Whole Wheat Bread", "Cheddar Cheese", "Striploin Steak"}},
		{"category", Filters{Category: "bakery"}, []string{"Whole Wheat Bread"}},
		{"max price", Filters{MaxPrice: 7.00}, []string{"Whole Wheat Bread", "Cheddar Cheese"}},
		{"min price", Filters{MinPrice: 10.00}, []string{"Striploin Steak"}},
		{"min discount", Filters{MinDiscount: 20}, []string{"Whole Wheat Bread"}},
		{"merchant allow", Filters{Merchants: []string{"walmart"}}, []string{"Cheddar Cheese"}},
		{"merchant block", Filters{BlockMerchants: []string{"walmart", "metro"}}, []string{"Striploin Steak"}},
		{"search", Filters{Search: "cheese"}, []string{"Cheddar Cheese"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deals, err := repo.Query("M5V3A8", tt.filters, now)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(deals) != len(tt.want) {
				t.Fatalf("expected %d deals, got %d", len(tt.want), len(deals))
			}
			for i, name := range tt.want {
				if deals[i].Name != name {
					t.Errorf("position %d: expected %q, got %q", i, name, deals[i].Name)
				}
			}
		})
	}
}

func TestQuery_ExcludesStaleAndExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	fresh := testDeal("walmart", "fresh", "Fresh Deal", 1.00, now)
	stale := testDeal("walmart", "stale", "Stale Deal", 1.00, now.Add(-8*24*time.Hour))
	expired := testDeal("walmart", "expired", "Expired Deal", 1.00, now)
	expired.ValidTo = ptr(now.Add(-time.Hour))
	upcoming := testDeal("walmart", "upcoming", "Upcoming Deal", 1.00, now)
	upcoming.ValidFrom = now.Add(24 * time.Hour)

	if err := repo.UpsertMany("M5V3A8", []deal.Deal{fresh, stale, expired, upcoming}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deals, err := repo.Query("M5V3A8", Filters{}, now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(deals) != 1 || deals[0].Name != "Fresh Deal" {
		t.Errorf("expected only the fresh deal, got %+v", deals)
	}
}

func TestQuery_ScopedToArea(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	if err := repo.UpsertMany("M5V3A8", []deal.Deal{testDeal("walmart", "item-1", "Milk", 4.99, now)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deals, err := repo.Query("H2X1Y4", Filters{}, now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(deals) != 0 {
		t.Errorf("expected no deals for other area, got %d", len(deals))
	}
}

func TestPruneExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	fresh := testDeal("walmart", "fresh", "Fresh Deal", 1.00, now)
	stale := testDeal("walmart", "stale", "Stale Deal", 1.00, now.Add(-9*24*time.Hour))
	ended := testDeal("walmart", "ended", "Ended Deal", 1.00, now)
	ended.ValidTo = ptr(now.Add(-time.Hour))

	if err := repo.UpsertMany("M5V3A8", []deal.Deal{fresh, stale, ended}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pruned, err := repo.PruneExpired(now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Errorf("expected 2 pruned rows, got %d", pruned)
	}

	n, err := repo.CountForArea("M5V3A8", now)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 remaining deal, got %d", n)
	}
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	repo := NewDealRepository(db, 168*time.Hour)
	now := time.Now().UTC()

	if err := repo.UpsertMany("M5V3A8", []deal.Deal{testDeal("walmart", "item-1", "Milk", 4.99, now)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	other := testDeal("metro", "item-2", "Bread", 2.49, now)
	other.AreaKey = "H2X1Y4"
	if err := repo.UpsertMany("H2X1Y4", []deal.Deal{other}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDeals != 2 || stats.TotalAreas != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

package match

import (
	"testing"
	"time"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
)

type staticReader struct {
	deals []deal.Deal
	err   error
}

func (s *staticReader) Query(areaKey string, f database.Filters, now time.Time) ([]deal.Deal, error) {
	return s.deals, s.err
}

func namedDeal(merchant, name string, price float64, fetchedAt time.Time) deal.Deal {
	return deal.Deal{
		AreaKey:      "M5V3A8",
		MerchantID:   merchant,
		MerchantName: merchant,
		SourceItemID: merchant + "-" + name,
		Name:         name,
		Category:     deal.InferCategory(name, ""),
		Price:        price,
		FetchedAt:    fetchedAt,
	}
}

func TestCompareTwoMerchantsSameProduct(t *testing.T) {
	now := time.Now()
	reader := &staticReader{deals: []deal.Deal{
		namedDeal("walmart", "Milk 2% 4L", 4.99, now),
		namedDeal("metro", "Milk 2% 4L", 5.49, now),
	}}
	c := NewComparator(reader, DefaultThreshold)

	result, err := c.Compare("M5V3A8", "milk", now)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Deals) != 2 {
		t.Fatalf("Expected 2 matching deals, got %d", len(result.Deals))
	}
	if result.BestDeal == nil || result.BestDeal.Price != 4.99 {
		t.Errorf("Expected best deal at 4.99, got %+v", result.BestDeal)
	}
	if diff := result.MaxSavings - 0.50; diff > 0.001 || diff < -0.001 {
		t.Errorf("Expected max savings 0.50, got %v", result.MaxSavings)
	}
	if result.TotalStoresCompared != 2 {
		t.Errorf("Expected 2 stores compared, got %d", result.TotalStoresCompared)
	}
}

func TestCompareNoMatchesIsEmptyResult(t *testing.T) {
	now := time.Now()
	reader := &staticReader{deals: []deal.Deal{
		namedDeal("walmart", "Garden Hose 50ft", 24.99, now),
	}}
	c := NewComparator(reader, DefaultThreshold)

	result, err := c.Compare("M5V3A8", "xylophone deluxe", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deals) != 0 || result.BestDeal != nil {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if result.Target != "xylophone deluxe" {
		t.Errorf("Expected target preserved, got %q", result.Target)
	}
}

func TestCompareExcludesNonPositivePrices(t *testing.T) {
	now := time.Now()
	reader := &staticReader{deals: []deal.Deal{
		namedDeal("walmart", "Milk 2% 4L", 4.99, now),
		namedDeal("metro", "Milk 1% 4L", 0, now),
	}}
	c := NewComparator(reader, DefaultThreshold)

	result, err := c.Compare("M5V3A8", "milk", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deals) != 1 {
		t.Fatalf("Expected zero-price deal excluded, got %d deals", len(result.Deals))
	}
}

func TestCompareTieBreaks(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)
	reader := &staticReader{deals: []deal.Deal{
		namedDeal("zehrs", "Milk 2% 4L", 4.99, now),
		namedDeal("metro", "Milk 2% 4L", 4.99, now),
		namedDeal("walmart", "Milk 2% 4L", 4.99, older),
	}}
	c := NewComparator(reader, DefaultThreshold)

	result, err := c.Compare("M5V3A8", "milk", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deals) != 3 {
		t.Fatalf("Expected 3 deals, got %d", len(result.Deals))
	}

	// Equal price: newer fetch first, then merchant name ascending.
	want := []string{"metro", "zehrs", "walmart"}
	for i, m := range want {
		if result.Deals[i].MerchantID != m {
			t.Errorf("position %d: expected %s, got %s", i, m, result.Deals[i].MerchantID)
		}
	}
}

func TestCompareCategoryFallback(t *testing.T) {
	now := time.Now()
	reader := &staticReader{deals: []deal.Deal{
		namedDeal("walmart", "Lactantia PurFiltre 2L", 3.99, now),
	}}
	reader.deals[0].Category = "dairy"
	c := NewComparator(reader, DefaultThreshold)

	// No token overlap with the brand name, but "milk" infers the
	// dairy category.
	result, err := c.Compare("M5V3A8", "milk", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deals) != 1 {
		t.Fatalf("Expected category fallback to match, got %d deals", len(result.Deals))
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Milk 2% 4L", []string{"milk"}},
		{"Chicken Breast, Boneless", []string{"chicken", "breast", "boneless"}},
		{"2% 4L of", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"milk"}, []string{"milk"}, 1},
		{[]string{"whole", "wheat", "bread"}, []string{"white", "bread"}, 1.0 / 3.0},
		{[]string{"milk"}, []string{"eggs"}, 0},
		{nil, []string{"milk"}, 0},
	}

	for _, tt := range tests {
		if got := OverlapRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("OverlapRatio(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

package match

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
)

// DefaultThreshold is the minimum token overlap ratio for two product
// names to count as the same product. There is no canonical product
// identity across merchants, so this stays tunable.
const DefaultThreshold = 0.3

// minTokenLength drops short filler tokens ("2%", "4L", "of") that
// would otherwise dominate overlap scoring.
const minTokenLength = 4

type Comparator struct {
	store     DealReader
	threshold float64
}

func NewComparator(store DealReader, threshold float64) *Comparator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Comparator{store: store, threshold: threshold}
}

// Compare finds deals in an area that look like the target product and
// ranks them cheapest first. A deal is a candidate when its name
// overlaps the target by at least the threshold, or when its category
// equals the category inferred from the target. No matches is a valid
// empty result, not an error.
func (c *Comparator) Compare(areaKey, productName string, now time.Time) (ComparisonResult, error) {
	result := ComparisonResult{Target: productName}

	deals, err := c.store.Query(areaKey, database.Filters{}, now)
	if err != nil {
		return ComparisonResult{}, err
	}

	targetTokens := Tokenize(productName)
	targetCategory := deal.InferCategory(productName, "")

	var candidates []deal.Deal
	for _, d := range deals {
		if d.Price <= 0 {
			continue
		}
		if c.matches(targetTokens, targetCategory, d) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return result, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		return a.MerchantName < b.MerchantName
	})

	merchants := make(map[string]struct{})
	for _, d := range candidates {
		merchants[d.MerchantID] = struct{}{}
	}

	result.Deals = candidates
	result.BestDeal = &candidates[0]
	result.MaxSavings = candidates[len(candidates)-1].Price - candidates[0].Price
	result.TotalStoresCompared = len(merchants)
	return result, nil
}

func (c *Comparator) matches(targetTokens []string, targetCategory string, d deal.Deal) bool {
	if OverlapRatio(targetTokens, Tokenize(d.Name)) >= c.threshold {
		return true
	}
	// Category fallback only when the target name actually maps to a
	// known category; "other" would match far too much.
	return targetCategory != "other" && d.Category == targetCategory
}

// Tokenize splits a product name into lowercase word tokens, dropping
// tokens shorter than minTokenLength.
func Tokenize(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// OverlapRatio scores how similar two token sets are: shared tokens
// divided by the size of the larger set. Empty input scores zero.
func OverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}

	matched := make(map[string]struct{})
	for _, t := range b {
		if _, ok := set[t]; ok {
			matched[t] = struct{}{}
		}
	}

	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(len(matched)) / float64(longer)
}

package deal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/flyerflutter/dealcomb/app/flipp"
)

// Normalizer maps raw vendor items into canonical deals. It is a pure
// transformation: no I/O, deterministic given identical input, and safe
// to share across concurrent area sweeps.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run normalizes a single raw item fetched under areaKey. Items with an
// unusable name or price are dropped, not defaulted: a zero price would
// corrupt ranking downstream.
func (n *Normalizer) Run(raw flipp.RawItem, areaKey string, fetchedAt time.Time) (Deal, *SkippedItem) {
	name := CleanText(raw.Name)
	if name == "" {
		return Deal{}, &SkippedItem{Reason: "missing name"}
	}

	price, ok := ParsePrice(raw.CurrentPrice.Raw)
	if !ok {
		return Deal{}, &SkippedItem{Name: name, Reason: fmt.Sprintf("unparsable price %q", raw.CurrentPrice.Raw)}
	}
	if price < 0 {
		return Deal{}, &SkippedItem{Name: name, Reason: fmt.Sprintf("negative price %q", raw.CurrentPrice.Raw)}
	}

	// cases.Caser carries transform state, so a fresh one is built per call
	// rather than shared between goroutines.
	merchantName := cases.Title(language.English).String(strings.ToLower(CleanText(raw.MerchantDisplayName())))

	d := Deal{
		AreaKey:      areaKey,
		MerchantID:   merchantSlug(merchantName),
		MerchantName: merchantName,
		Name:         name,
		Description:  CleanText(raw.Description),
		Price:        price,
		ImageURL:     firstNonEmpty(raw.CleanImageURL, raw.ClippingImageURL, raw.ImageURL),
		FlyerURL:     raw.FlyerURL,
		FetchedAt:    fetchedAt,
	}

	// Vendor data sometimes reports a "regular" price below the sale
	// price; the contradictory value is dropped rather than swapped.
	if original, ok := ParsePrice(raw.RegularPrice.Raw); ok && original >= price && original > 0 {
		d.OriginalPrice = &original
		discount := math.Round((original - price) / original * 100)
		d.DiscountPercent = &discount
	} else if vendor, ok := ParsePrice(raw.Discount.Raw); ok && vendor > 0 {
		d.DiscountPercent = &vendor
	}

	d.Category = InferCategory(name, d.Description)

	d.ValidFrom, d.ValidTo = parseValidity(raw, fetchedAt)

	d.SourceItemID = raw.SourceItemID()
	if d.SourceItemID == "" {
		d.SourceItemID = fallbackSourceID(d.MerchantName, name, raw.CurrentPrice.Raw)
	}

	return d, nil
}

func parseValidity(raw flipp.RawItem, fetchedAt time.Time) (time.Time, *time.Time) {
	validFrom := fetchedAt
	if from, ok := parseDate(firstNonEmpty(raw.Flyer.ValidFrom, raw.ValidFrom)); ok {
		validFrom = from
	}

	var validTo *time.Time
	if to, ok := parseDate(firstNonEmpty(raw.Flyer.ValidTo, raw.ValidTo)); ok && !to.Before(validFrom) {
		validTo = &to
	}

	return validFrom, validTo
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	parsed, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, false
	}

	return parsed.UTC(), true
}

// ParsePrice tolerates currency symbols, thousands separators, and
// decimal commas. Returns false for anything it cannot read as a plain
// decimal number.
func ParsePrice(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		case r == '$' || r == '€' || r == '£' || r == ' ':
			// Currency markers and spacing are dropped.
		default:
			return 0, false
		}
	}

	cleaned := b.String()
	if strings.Contains(cleaned, ".") {
		// Commas can only be thousands separators here.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else if strings.Count(cleaned, ",") == 1 {
		// A lone comma without a dot is a decimal separator ("4,99").
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	return parsed, true
}

// CleanText applies unicode compatibility normalization and collapses
// runs of whitespace, giving stable text for matching downstream.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func merchantSlug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func fallbackSourceID(merchant, name, rawPrice string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%s-%s", merchant, name, rawPrice)))
	return hex.EncodeToString(sum[:])[:16]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package flipp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FailureKind classifies terminal source client failures.
type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUpstream    FailureKind = "upstream_error"
	FailureMalformed   FailureKind = "malformed"
)

// Failure is the terminal error surfaced after retries are exhausted or
// a non-retryable response is received.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("flipp %s (HTTP %d): %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("flipp %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the failure is transient: network errors,
// rate limiting, and server-side (5xx) upstream errors.
func (f *Failure) Retryable() bool {
	if f.Kind == FailureNetwork || f.Kind == FailureRateLimited {
		return true
	}
	return f.Kind == FailureUpstream && f.StatusCode >= 500
}

// FlexString decodes a JSON value that may arrive as a string or a number.
// The unofficial catalog API is not consistent about item id types.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = FlexString(num.String())
		return nil
	}

	return fmt.Errorf("value is neither string nor number: %s", data)
}

// FlexPrice captures a price field that may arrive as a JSON number, a
// formatted string ("$4.99", "1,299.00") or null. The raw text is kept
// as-is; tolerant parsing happens in the normalizer.
type FlexPrice struct {
	Raw string
}

func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		p.Raw = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		p.Raw = strings.TrimSpace(str)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		p.Raw = strconv.FormatFloat(f, 'f', -1, 64)
		return nil
	}

	return fmt.Errorf("price is neither string nor number: %s", data)
}

func (p FlexPrice) Empty() bool {
	return p.Raw == ""
}

// Merchant decodes the merchant field, which is either a plain string
// ("Costco") or a nested object with a name.
type Merchant struct {
	Name string
}

func (m *Merchant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Name = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		m.Name = str
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		m.Name = obj.Name
		return nil
	}

	return fmt.Errorf("merchant is neither string nor object: %s", data)
}

// FlyerInfo carries the sale validity range attached to an item.
type FlyerInfo struct {
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

// RawItem is one promotional item as returned by the search endpoint.
// Field shapes vary between merchants; everything that varies uses a
// flexible decoder.
type RawItem struct {
	FlyerItemID      FlexString `json:"flyer_item_id"`
	ID               FlexString `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	CurrentPrice     FlexPrice  `json:"current_price"`
	RegularPrice     FlexPrice  `json:"regular_price"`
	Discount         FlexPrice  `json:"discount"`
	MerchantName     string     `json:"merchant_name"`
	Merchant         Merchant   `json:"merchant"`
	Flyer            FlyerInfo  `json:"flyer"`
	ValidFrom        string     `json:"valid_from"`
	ValidTo          string     `json:"valid_to"`
	CleanImageURL    string     `json:"clean_image_url"`
	ClippingImageURL string     `json:"clipping_image_url"`
	ImageURL         string     `json:"image_url"`
	FlyerURL         string     `json:"flyer_url"`
}

// SourceItemID returns the vendor item id when present.
func (r RawItem) SourceItemID() string {
	if r.FlyerItemID != "" {
		return string(r.FlyerItemID)
	}
	return string(r.ID)
}

// MerchantDisplayName resolves the merchant name across the shapes the
// API uses, falling back to a placeholder.
func (r RawItem) MerchantDisplayName() string {
	if r.MerchantName != "" {
		return r.MerchantName
	}
	if r.Merchant.Name != "" {
		return r.Merchant.Name
	}
	return "Unknown Store"
}

// searchResponse is the envelope of the items/search endpoint.
type searchResponse struct {
	Items []RawItem `json:"items"`
}

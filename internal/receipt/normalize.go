package receipt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jthornhill/finagent/internal/finance"
)

// ErrMalformedResponse reports model output that is not a JSON object.
// This is the one hard failure of normalization; everything else is
// repaired in place.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Documented defaults for absent or uncoercible fields.
const (
	defaultCurrency = "USD"
	defaultVendor   = "Unknown Vendor"
	defaultItemName = "Unnamed Item"
)

// Normalize converts raw model output into a type- and field-complete
// receipt. today is the ISO-8601 date substituted when the document
// carries no usable date. The returned slice lists every field path that
// was defaulted, for logging by the caller.
func Normalize(raw []byte, today string) (finance.ExtractedReceipt, []string, error) {
	var out finance.ExtractedReceipt

	doc := strings.TrimSpace(string(raw))
	doc = stripFence(doc)
	if !gjson.Valid(doc) {
		return out, nil, ErrMalformedResponse
	}
	parsed := gjson.Parse(doc)
	if !parsed.IsObject() {
		return out, nil, ErrMalformedResponse
	}

	var defaulted []string

	out.Date = stringField(parsed.Get("date"), today, "date", &defaulted)
	out.Currency = stringField(parsed.Get("currency"), defaultCurrency, "currency", &defaulted)
	out.VendorName = stringField(parsed.Get("vendor_name"), defaultVendor, "vendor_name", &defaulted)
	out.Tax = amountField(parsed.Get("tax"), "tax", &defaulted)
	out.Total = amountField(parsed.Get("total"), "total", &defaulted)

	items := parsed.Get("receipt_items")
	out.Items = []finance.ReceiptItem{}
	switch {
	case items.IsArray():
		for i, el := range items.Array() {
			item := finance.ReceiptItem{
				ItemName: stringField(el.Get("item_name"), defaultItemName, fmt.Sprintf("receipt_items.%d.item_name", i), &defaulted),
				ItemCost: numberField(el.Get("item_cost"), fmt.Sprintf("receipt_items.%d.item_cost", i), &defaulted),
			}
			out.Items = append(out.Items, item)
		}
	default:
		// Absent or not sequence-shaped: replaced by an empty sequence.
		defaulted = append(defaulted, "receipt_items")
	}

	return out, defaulted, nil
}

// stringField returns v as a string, or fallback when v is absent or not
// a string, recording the substitution under path.
func stringField(v gjson.Result, fallback, path string, defaulted *[]string) string {
	if v.Type == gjson.String {
		return v.Str
	}
	*defaulted = append(*defaulted, path)
	return fallback
}

// numberField coerces v to a float. Number-like strings ("12.50")
// coerce; anything else substitutes 0, recorded under path.
func numberField(v gjson.Result, path string, defaulted *[]string) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.String:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return parsed
		}
	}
	*defaulted = append(*defaulted, path)
	return 0
}

// amountField is numberField with the non-negative invariant tax and
// total carry; negative values substitute 0.
func amountField(v gjson.Result, path string, defaulted *[]string) float64 {
	mark := len(*defaulted)
	f := numberField(v, path, defaulted)
	if f < 0 {
		*defaulted = append((*defaulted)[:mark], path)
		return 0
	}
	return f
}

// stripFence removes a surrounding markdown code fence, which some
// models wrap around JSON output despite instructions.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s
	}
	s = s[i+1:]
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

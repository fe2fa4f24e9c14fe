package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-cam/internal/scanning"
)

// Record is a committed receipt: the extracted fields plus the user's overrides
type Record struct {
	ID          string            `json:"id"`
	CaptureID   string            `json:"capture_id,omitempty"`
	Receipt     *scanning.Receipt `json:"receipt"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Final returns the receipt with overrides applied
func (r *Record) Final() *scanning.Receipt {
	final := scanning.NewReceipt()
	if r.Receipt != nil {
		*final = *r.Receipt
	}
	for field, value := range r.Overrides {
		final.Set(field, value)
	}
	return final
}

// Summary totals the committed receipts
type Summary struct {
	Count    int                        `json:"count"`
	Totaled  int                        `json:"totaled"`
	Total    decimal.Decimal            `json:"total"`
	ByVendor map[string]decimal.Decimal `json:"by_vendor"`
}

// ParseAmount reads a total_amount value such as "$1,234.50".
// It reports false for the sentinel and anything that is not a number.
func ParseAmount(value string) (decimal.Decimal, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == scanning.NotFound {
		return decimal.Zero, false
	}
	value = strings.NewReplacer("$", "", ",", "", " ", "").Replace(value)

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

package corrections

import (
	"fmt"

	"github.com/zombor/receipt-cam/internal/scanning"
)

// Rule tells the vision model to reinterpret one field value
type Rule struct {
	Field         string `json:"field"`
	Original      string `json:"original_value"`
	Corrected     string `json:"corrected_value"`
	VendorContext string `json:"vendor_context,omitempty"`
}

// Format renders the rule in the text form stored and sent in prompts
func (r Rule) Format() string {
	if r.Field == "vendor" {
		return fmt.Sprintf(`When Vendor is "%s", change it to "%s"`, r.Original, r.Corrected)
	}
	return fmt.Sprintf(`When vendor is "%s" and %s is "%s", change %s to "%s"`,
		r.VendorContext, r.Field, r.Original, r.Field, r.Corrected)
}

// Learn returns one rule for every field that differs between the extracted
// and the final receipt. Non-vendor rules use the final vendor as context.
func Learn(extracted, final *scanning.Receipt) []Rule {
	var rules []Rule
	for _, field := range scanning.Fields {
		before, _ := extracted.Get(field)
		after, _ := final.Get(field)
		if before == after {
			continue
		}
		rules = append(rules, Rule{
			Field:         field,
			Original:      before,
			Corrected:     after,
			VendorContext: final.Vendor,
		})
	}
	return rules
}

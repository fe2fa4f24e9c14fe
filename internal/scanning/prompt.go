package scanning

import "strings"

// receiptPrompt is the shared prompt used by all vision vendors for reading receipts
const receiptPrompt = `You are analyzing a photo of a receipt or invoice. Carefully read all text in the image and extract the following information:

1. **vendor**: The merchant, store or business name, usually the largest text at the top.
2. **invoice**: The invoice, receipt or order number.
3. **bill_date**: The date the bill or invoice was issued, formatted YYYY-MM-DD.
4. **paid_date**: The date payment was made, formatted YYYY-MM-DD.
5. **payment_method**: How it was paid, e.g. "Visa 1234", "Cash", "Check 1021".
6. **total_amount**: The final total paid, digits and decimal point only (e.g. "42.75").
7. **item_type**: The general category of what was bought (e.g. "Materials", "Tools", "Fuel").
8. **item**: A short description of the main item or items.
9. **project**: Any project name or job reference written on the receipt.
10. **expense_type**: The kind of expense (e.g. "Job Expense", "Office", "Travel").
11. **upper_right**: Any handwritten note or text in the upper right corner.

Return ONLY valid JSON in this exact format:
{
  "vendor": "",
  "invoice": "",
  "bill_date": "",
  "paid_date": "",
  "payment_method": "",
  "total_amount": "",
  "item_type": "",
  "item": "",
  "project": "",
  "expense_type": "",
  "upper_right": ""
}

Important:
- Every value must be a string
- If you cannot find a field, use "not found" for that field
- Do not include any text before or after the JSON`

// correctionPreamble introduces learned corrections appended to the prompt
const correctionPreamble = `The following corrections were made by the user on earlier receipts. Apply them exactly as written to every receipt:`

// BuildPrompt returns the receipt prompt followed by the correction rules, if any
func BuildPrompt(corrections string) string {
	corrections = strings.TrimSpace(corrections)
	if corrections == "" {
		return receiptPrompt
	}
	return receiptPrompt + "\n\n" + correctionPreamble + "\n" + corrections
}

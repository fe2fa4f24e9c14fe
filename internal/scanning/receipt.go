package scanning

// NotFound is the value of any receipt field the model did not return
const NotFound = "not found"

// Fields lists the receipt field names in the order they are presented and reported
var Fields = []string{
	"vendor",
	"invoice",
	"bill_date",
	"paid_date",
	"payment_method",
	"total_amount",
	"item_type",
	"item",
	"project",
	"expense_type",
	"upper_right",
}

// Receipt contains the information extracted from a receipt image.
// Every field always holds a string; missing values are NotFound.
type Receipt struct {
	Vendor        string `json:"vendor"`
	Invoice       string `json:"invoice"`
	BillDate      string `json:"bill_date"`
	PaidDate      string `json:"paid_date"`
	PaymentMethod string `json:"payment_method"`
	TotalAmount   string `json:"total_amount"`
	ItemType      string `json:"item_type"`
	Item          string `json:"item"`
	Project       string `json:"project"`
	ExpenseType   string `json:"expense_type"`
	UpperRight    string `json:"upper_right"`
}

// NewReceipt returns a Receipt with every field set to NotFound
func NewReceipt() *Receipt {
	r := &Receipt{}
	for _, f := range Fields {
		r.Set(f, NotFound)
	}
	return r
}

// field returns a pointer to the named field, or nil if the name is unknown
func (r *Receipt) field(name string) *string {
	switch name {
	case "vendor":
		return &r.Vendor
	case "invoice":
		return &r.Invoice
	case "bill_date":
		return &r.BillDate
	case "paid_date":
		return &r.PaidDate
	case "payment_method":
		return &r.PaymentMethod
	case "total_amount":
		return &r.TotalAmount
	case "item_type":
		return &r.ItemType
	case "item":
		return &r.Item
	case "project":
		return &r.Project
	case "expense_type":
		return &r.ExpenseType
	case "upper_right":
		return &r.UpperRight
	}
	return nil
}

// Get returns the value of the named field and whether the name is a receipt field
func (r *Receipt) Get(name string) (string, bool) {
	p := r.field(name)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns the named field. Empty values are stored as NotFound.
// It reports false if name is not a receipt field.
func (r *Receipt) Set(name, value string) bool {
	p := r.field(name)
	if p == nil {
		return false
	}
	if value == "" {
		value = NotFound
	}
	*p = value
	return true
}

// IsField reports whether name is one of the receipt fields
func IsField(name string) bool {
	return (&Receipt{}).field(name) != nil
}

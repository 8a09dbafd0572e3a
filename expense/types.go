package expense

// Expense is one persisted spending record.
type Expense struct {
	ID          int64   `db:"id" json:"id"`
	Date        string  `db:"date" json:"date"`
	Amount      float64 `db:"amount" json:"amount"`
	Category    string  `db:"category" json:"category"`
	Subcategory string  `db:"subcategory" json:"subcategory"`
	Note        string  `db:"note" json:"note"`
}

// NewExpense holds the caller-supplied fields of an expense before the store
// assigns it an ID.
type NewExpense struct {
	Date        string
	Amount      float64
	Category    string
	Subcategory string
	Note        string
}

// CategorySummary is the aggregate of all expenses sharing a category.
type CategorySummary struct {
	Category    string  `db:"category" json:"category"`
	TotalAmount float64 `db:"total_amount" json:"total_amount"`
	Count       int64   `db:"count" json:"count"`
}

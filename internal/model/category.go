package model

import "time"

// CategoryType indicates whether a category applies to income or expense
// transactions.
type CategoryType string

// Category type constants.
const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category represents a valid spending or income category.
type Category struct {
	CreatedAt   time.Time
	ID          string
	Name        string
	Description string
	Type        CategoryType
	IsActive    bool
}

package model

import "github.com/shopspring/decimal"

// NetDirection indicates whether a group of transactions nets positive,
// negative, or to zero.
type NetDirection string

// Net direction constants.
const (
	NetPositive NetDirection = "positive"
	NetNegative NetDirection = "negative"
	NetNeutral  NetDirection = "neutral"
)

// Categorization summarizes how many transactions in a group carry an
// assigned category.
type Categorization struct {
	CategorizedCount   int
	UncategorizedCount int
	Percent            float64
}

// Statistics holds aggregate financial figures for a group of transactions.
// When Sampled is true, Sources and Categorization were computed from a
// bounded sample; monetary totals and the date range are always exact.
type Statistics struct {
	TotalIncome    decimal.Decimal
	TotalExpense   decimal.Decimal
	NetAmount      decimal.Decimal // Absolute value; direction in NetDirection
	NetDirection   NetDirection
	DateRange      DateRange
	Sources        []string
	Categorization Categorization
	TotalCount     int
	IncomeCount    int
	ExpenseCount   int
	Sampled        bool
}

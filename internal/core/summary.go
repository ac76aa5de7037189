package core

// Totals is the income/expense balance over a set of transactions.
type Totals struct {
	Income   Money `json:"totalIncome"`
	Expenses Money `json:"totalExpenses"`
	Balance  Money `json:"balance"`
}

// CategoryAmount is an expense total aggregated by category.
type CategoryAmount struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Amount     Money  `json:"value"`
	Fill       string `json:"fill"`
}

// MonthAmount is one bucket of a monthly expense series.
type MonthAmount struct {
	Key    string `json:"key"`   // 2006-01
	Label  string `json:"label"` // Jan 06
	Amount Money  `json:"expenses"`
}

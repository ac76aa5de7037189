package core

import "fmt"

// AppName is used in export titles and file names.
const AppName = "SpendWise"

func chartColor(n int) string {
	return fmt.Sprintf("hsl(var(--chart-%d))", n)
}

var defaultCategories = []Category{
	{ID: "food", Name: "Food", Icon: IconUtensils, Color: chartColor(1)},
	{ID: "transport", Name: "Transportation", Icon: IconCar, Color: chartColor(2)},
	{ID: "housing", Name: "Housing", Icon: IconHome, Color: chartColor(3)},
	{ID: "shopping", Name: "Shopping", Icon: IconShoppingBag, Color: chartColor(4)},
	{ID: "utilities", Name: "Utilities", Icon: IconFileText, Color: chartColor(5)},
	{ID: "health", Name: "Healthcare", Icon: IconHeartPulse, Color: chartColor(1)},
	{ID: "entertainment", Name: "Entertainment", Icon: IconTicket, Color: chartColor(2)},
	{ID: "work", Name: "Work/Business", Icon: IconBriefcase, Color: chartColor(3)},
	{ID: "education", Name: "Education", Icon: IconGraduationCap, Color: chartColor(4)},
	{ID: "gifts", Name: "Gifts/Donations", Icon: IconGift, Color: chartColor(5)},
	{ID: "investments", Name: "Investments", Icon: IconTrendingUp, Color: chartColor(1)},
	{ID: "other", Name: "Other", Icon: IconTags, Color: chartColor(2)},
}

var defaultIndex = func() map[string]int {
	idx := make(map[string]int, len(defaultCategories))
	for i, c := range defaultCategories {
		idx[c.ID] = i
	}
	return idx
}()

// DefaultCategories returns a copy of the canonical starter categories in
// their canonical order.
func DefaultCategories() []Category {
	out := make([]Category, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}

func IsDefaultCategory(id string) bool {
	_, ok := defaultIndex[id]
	return ok
}

// DefaultIndex returns the canonical position of a default category.
func DefaultIndex(id string) (int, bool) {
	i, ok := defaultIndex[id]
	return i, ok
}

// FallbackChartColor is the fill used for a category without its own color
// at position i of a chart.
func FallbackChartColor(i int) string {
	return chartColor(i%5 + 1)
}

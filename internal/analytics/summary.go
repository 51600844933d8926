// Package analytics computes spending summaries from expense records.
//
// Amounts are converted to their shortest exact decimal form and summed
// without loss; every reported figure is rounded once, to two places, half
// away from zero. The average divides the unrounded total by the count.
package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"spendbook/internal/models"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places reported figures are rounded to.
const Places = 2

// Total is a labelled sum, either a category or a YYYY-MM month.
type Total struct {
	Key    string
	Amount float64
}

// Totals is an ordered set of labelled sums. It marshals to a JSON object
// whose keys keep the slice order.
type Totals []Total

// Get returns the amount stored under key.
func (t Totals) Get(key string) (float64, bool) {
	for _, item := range t {
		if item.Key == key {
			return item.Amount, true
		}
	}
	return 0, false
}

// Keys returns the keys in order.
func (t Totals) Keys() []string {
	keys := make([]string, len(t))
	for i, item := range t {
		keys[i] = item.Key
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (t Totals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		amount, err := json.Marshal(item.Amount)
		if err != nil {
			return nil, err
		}
		buf.Write(amount)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Summary is the aggregate view of a list of expenses.
type Summary struct {
	TotalSpending  float64 `json:"total_spending"`
	Count          int     `json:"expense_count"`
	CategoryTotals Totals  `json:"category_totals"`
	MonthlyTotals  Totals  `json:"monthly_totals"`
	AverageExpense float64 `json:"average_expense"`
}

// Summarize aggregates expenses. Category totals keep first-seen order and
// monthly totals are sorted by month ascending.
func Summarize(expenses []models.Expense) Summary {
	if len(expenses) == 0 {
		return Summary{
			CategoryTotals: Totals{},
			MonthlyTotals:  Totals{},
		}
	}

	total := decimal.Zero
	byCategory := newAccumulator()
	byMonth := newAccumulator()

	for _, e := range expenses {
		amount := decimal.NewFromFloat(e.Amount)
		total = total.Add(amount)
		byCategory.add(e.Category, amount)
		byMonth.add(e.Month(), amount)
	}

	monthly := byMonth.totals()
	sort.SliceStable(monthly, func(i, j int) bool { return monthly[i].Key < monthly[j].Key })

	count := len(expenses)
	average := total.Div(decimal.NewFromInt(int64(count)))

	return Summary{
		TotalSpending:  round(total),
		Count:          count,
		CategoryTotals: byCategory.totals(),
		MonthlyTotals:  monthly,
		AverageExpense: round(average),
	}
}

// Share returns part as a percentage of whole, rounded to two places.
func Share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromFloat(part).Div(decimal.NewFromFloat(whole)).Mul(decimal.NewFromInt(100))
	return round(p)
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(Places)
}

// Limits on user-entered amounts. Converting a decimal with a huge exponent
// to float64 materialises 10^exp, so such input is refused up front.
const (
	maxAmountLength   = 32
	maxAmountExponent = 20
)

// ParseAmount parses a user-entered decimal amount.
func ParseAmount(s string) (float64, error) {
	if len(s) > maxAmountLength {
		return 0, fmt.Errorf("amount %q too long", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return f, nil
}

func round(d decimal.Decimal) float64 {
	return d.Round(Places).InexactFloat64()
}

type accumulator struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{sums: make(map[string]decimal.Decimal)}
}

func (a *accumulator) add(key string, amount decimal.Decimal) {
	sum, ok := a.sums[key]
	if !ok {
		a.order = append(a.order, key)
		sum = decimal.Zero
	}
	a.sums[key] = sum.Add(amount)
}

func (a *accumulator) totals() Totals {
	out := make(Totals, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, Total{Key: key, Amount: round(a.sums[key])})
	}
	return out
}

package budget

import (
	"math"
	"sort"
	"time"
)

// DefaultMonthStartDay starts budget months on the calendar month
const DefaultMonthStartDay = 1

// MaxMonthStartDay keeps every month's start day valid
const MaxMonthStartDay = 28

// periodStart returns the first day of the budget month date falls in. With a
// start day of 25, 2024-03-10 belongs to the month starting 2024-02-25.
func periodStart(date time.Time, startDay int) time.Time {
	month := date.Month()
	if date.Day() < startDay {
		month--
	}
	return time.Date(date.Year(), month, startDay, 0, 0, 0, 0, time.UTC)
}

// BuildReport totals entries overall, per expense category and per budget
// month. Entries with unparseable dates count toward totals only.
func BuildReport(entries []Entry, monthStartDay int) Report {
	if monthStartDay < 1 || monthStartDay > MaxMonthStartDay {
		monthStartDay = DefaultMonthStartDay
	}

	report := Report{
		ByCategory: []CategoryTotal{},
		Monthly:    []PeriodTotal{},
		Entries:    len(entries),
	}
	categories := make(map[string]float64)
	periods := make(map[time.Time]*PeriodTotal)

	for _, e := range entries {
		var period *PeriodTotal
		if date, err := time.Parse(DateLayout, e.Date); err == nil {
			start := periodStart(date, monthStartDay)
			period = periods[start]
			if period == nil {
				period = &PeriodTotal{Period: start.Format("2006-01"), Start: start.Format(DateLayout)}
				periods[start] = period
			}
		}

		switch e.Type {
		case TypeIncome:
			report.Income += e.Amount
			if period != nil {
				period.Income += e.Amount
			}
		case TypeExpense:
			report.Expense += e.Amount
			categories[e.Category] += e.Amount
			if period != nil {
				period.Expense += e.Amount
			}
		}
	}

	for category, total := range categories {
		share := 0.0
		if report.Expense > 0 {
			share = total / report.Expense * 100
		}
		report.ByCategory = append(report.ByCategory, CategoryTotal{
			Category: category,
			Total:    roundCents(total),
			Share:    roundCents(share),
		})
	}
	sort.Slice(report.ByCategory, func(i, j int) bool {
		a, b := report.ByCategory[i], report.ByCategory[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})

	starts := make([]time.Time, 0, len(periods))
	for start := range periods {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	balance := 0.0
	for _, start := range starts {
		p := periods[start]
		net := p.Income - p.Expense
		balance += net
		p.Income = roundCents(p.Income)
		p.Expense = roundCents(p.Expense)
		p.Net = roundCents(net)
		p.Balance = roundCents(balance)
		report.Monthly = append(report.Monthly, *p)
	}

	report.Balance = roundCents(report.Income - report.Expense)
	report.Income = roundCents(report.Income)
	report.Expense = roundCents(report.Expense)
	return report
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

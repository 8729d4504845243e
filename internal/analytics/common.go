// Package analytics folds pre-fetched order, booking and registration rows
// into dashboard summaries. Builders are pure: no I/O, no clocks beyond
// Options.Now, and well-formed rows are assumed.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"marketplace-assistant/internal/models"
)

const (
	DefaultTopN = 5

	// PlaceholderRating stands in for completed rows without a rating when
	// Options.PlaceholderRatings is set. Results are flagged as placeholder.
	PlaceholderRating = 4.5

	growthWindow = 30 * 24 * time.Hour
	monthsWindow = 6

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Options controls a single analytics build
type Options struct {
	Now                time.Time
	TopN               int
	PlaceholderRatings bool
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}

// GrowthRate returns the percentage change from previous to current.
// A zero previous period yields 100 when current is positive and 0 otherwise.
func GrowthRate(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round2((current - previous) / previous * 100)
}

func isCancelled(status string) bool {
	s := strings.ToLower(status)
	return s == models.StatusCancelled || s == "canceled"
}

func isCompleted(status string) bool {
	return strings.EqualFold(status, models.StatusCompleted)
}

func statusKey(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return "unknown"
	}
	if s == "canceled" {
		return models.StatusCancelled
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return round2(num / den)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return round2(stat.Mean(values, nil))
}

// periods accumulates the trailing growth window and the window before it
type periods struct {
	now             time.Time
	currentRevenue  float64
	previousRevenue float64
	currentCount    int
	previousCount   int
}

func newPeriods(now time.Time) *periods {
	return &periods{now: now}
}

func (p *periods) add(ts time.Time, revenue float64) {
	age := p.now.Sub(ts)
	switch {
	case age < 0:
		return
	case age < growthWindow:
		p.currentRevenue += revenue
		p.currentCount++
	case age < 2*growthWindow:
		p.previousRevenue += revenue
		p.previousCount++
	}
}

func (p *periods) growth() models.Growth {
	return models.Growth{
		CurrentRevenue:  round2(p.currentRevenue),
		PreviousRevenue: round2(p.previousRevenue),
		RevenueGrowth:   GrowthRate(p.currentRevenue, p.previousRevenue),
		CurrentCount:    p.currentCount,
		PreviousCount:   p.previousCount,
		CountGrowth:     GrowthRate(float64(p.currentCount), float64(p.previousCount)),
	}
}

// trends buckets rows by day over a trailing window and by calendar month
// over the trailing six months in a single pass
type trends struct {
	days     []models.DailyPoint
	dayIndex map[string]int
	months   []models.MonthlyPoint
	monIndex map[string]int
}

func newTrends(now time.Time, days int) *trends {
	t := &trends{
		days:     make([]models.DailyPoint, days),
		dayIndex: make(map[string]int, days),
		months:   make([]models.MonthlyPoint, monthsWindow),
		monIndex: make(map[string]int, monthsWindow),
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		key := today.AddDate(0, 0, i-(days-1)).Format(dayLayout)
		t.days[i] = models.DailyPoint{Date: key}
		t.dayIndex[key] = i
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < monthsWindow; i++ {
		key := firstOfMonth.AddDate(0, i-(monthsWindow-1), 0).Format(monthLayout)
		t.months[i] = models.MonthlyPoint{Month: key}
		t.monIndex[key] = i
	}

	return t
}

func (t *trends) add(ts time.Time, count int, revenue float64) {
	ts = ts.UTC()
	if i, ok := t.dayIndex[ts.Format(dayLayout)]; ok {
		t.days[i].Count += count
		t.days[i].Revenue += revenue
	}
	if i, ok := t.monIndex[ts.Format(monthLayout)]; ok {
		t.months[i].Count += count
		t.months[i].Revenue += revenue
	}
}

func (t *trends) daily() []models.DailyPoint {
	for i := range t.days {
		t.days[i].Revenue = round2(t.days[i].Revenue)
	}
	return t.days
}

func (t *trends) monthly() []models.MonthlyPoint {
	for i := range t.months {
		t.months[i].Revenue = round2(t.months[i].Revenue)
	}
	return t.months
}

type categoryTotals map[string]*models.CategoryStat

func (c categoryTotals) add(category string, count int, revenue float64) {
	if category == "" {
		category = "uncategorized"
	}
	cs, ok := c[category]
	if !ok {
		cs = &models.CategoryStat{Category: category}
		c[category] = cs
	}
	cs.Count += count
	cs.Revenue += revenue
}

// sorted orders categories by revenue, then count, then name
func (c categoryTotals) sorted() []models.CategoryStat {
	out := make([]models.CategoryStat, 0, len(c))
	for _, cs := range c {
		cs.Revenue = round2(cs.Revenue)
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func topN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

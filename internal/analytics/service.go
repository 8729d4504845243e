package analytics

import (
	"sort"
	"time"

	"marketplace-assistant/internal/models"
)

const serviceDailyWindow = 7

type serviceTotals struct {
	stat    models.ServiceStat
	ratings []float64
}

// BuildServiceAnalytics summarizes one provider's bookings
func BuildServiceAnalytics(bookings []models.BookingRow, opts Options) *models.ServiceAnalytics {
	opts = opts.withDefaults()

	result := &models.ServiceAnalytics{
		TotalBookings:   len(bookings),
		StatusBreakdown: make(map[string]int),
	}

	services := make(map[string]*serviceTotals)
	customers := make(map[string]*models.CustomerStat)
	categories := make(categoryTotals)
	tr := newTrends(opts.Now, serviceDailyWindow)
	pr := newPeriods(opts.Now)

	var (
		revenue     float64
		paid        int
		ratings     []float64
		placeholder bool
	)

	for _, b := range bookings {
		result.StatusBreakdown[statusKey(b.Status)]++

		st, ok := services[b.ServiceID]
		if !ok {
			st = &serviceTotals{stat: models.ServiceStat{
				ServiceID:   b.ServiceID,
				ServiceName: b.ServiceName,
				Category:    b.Category,
			}}
			services[b.ServiceID] = st
		}
		st.stat.Bookings++

		var cs *models.CustomerStat
		if b.CustomerID != "" {
			cs, ok = customers[b.CustomerID]
			if !ok {
				cs = &models.CustomerStat{CustomerID: b.CustomerID, CustomerName: b.CustomerName}
				customers[b.CustomerID] = cs
			}
			cs.Count++
		}

		if isCompleted(b.Status) {
			result.CompletedBookings++
		}

		switch {
		case b.Rating != nil:
			ratings = append(ratings, *b.Rating)
			st.ratings = append(st.ratings, *b.Rating)
		case opts.PlaceholderRatings && isCompleted(b.Status):
			ratings = append(ratings, PlaceholderRating)
			st.ratings = append(st.ratings, PlaceholderRating)
			placeholder = true
		}

		if isCancelled(b.Status) {
			result.CancelledBookings++
			categories.add(b.Category, 1, 0)
			continue
		}

		paid++
		revenue += b.Price
		st.stat.Revenue += b.Price
		if cs != nil {
			cs.TotalSpent += b.Price
		}
		categories.add(b.Category, 1, b.Price)

		ts := bookingTime(b)
		tr.add(ts, 1, b.Price)
		pr.add(ts, b.Price)
	}

	result.TotalRevenue = round2(revenue)
	result.AverageBookingValue = ratio(revenue, float64(paid))
	if result.TotalBookings > 0 {
		result.CompletionRate = round2(float64(result.CompletedBookings) / float64(result.TotalBookings) * 100)
	}

	result.RatingCount = len(ratings)
	result.AverageRating = mean(ratings)
	result.RatingIsPlaceholder = placeholder

	result.UniqueCustomers = len(customers)
	for _, cs := range customers {
		if cs.Count > 1 {
			result.RepeatCustomers++
		}
	}

	result.TopServices = topN(rankServices(services), opts.TopN)
	result.TopCustomers = topN(rankCustomers(customers), opts.TopN)
	result.Categories = categories.sorted()
	result.DailyTrend = tr.daily()
	result.MonthlyTrend = tr.monthly()
	result.Growth = pr.growth()

	return result
}

// bookingTime is when the booking was made, falling back to the booked slot
func bookingTime(b models.BookingRow) time.Time {
	if b.CreatedAt.IsZero() {
		return b.BookingDate
	}
	return b.CreatedAt
}

func rankServices(services map[string]*serviceTotals) []models.ServiceStat {
	out := make([]models.ServiceStat, 0, len(services))
	for _, st := range services {
		s := st.stat
		s.Revenue = round2(s.Revenue)
		s.AverageRating = mean(st.ratings)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bookings != out[j].Bookings {
			return out[i].Bookings > out[j].Bookings
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

func rankCustomers(customers map[string]*models.CustomerStat) []models.CustomerStat {
	out := make([]models.CustomerStat, 0, len(customers))
	for _, cs := range customers {
		c := *cs
		c.TotalSpent = round2(c.TotalSpent)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].TotalSpent != out[j].TotalSpent {
			return out[i].TotalSpent > out[j].TotalSpent
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}

package analytics

import (
	"sort"
	"time"

	"marketplace-assistant/internal/models"
)

const eventDailyWindow = 30

type eventTotals struct {
	stat models.EventStat
	date time.Time
}

type locationTotals struct {
	stat   models.LocationStat
	events map[string]struct{}
}

// BuildEventAnalytics summarizes one organizer's event registrations.
// A registration with no quantity counts as one ticket.
func BuildEventAnalytics(registrations []models.RegistrationRow, opts Options) *models.EventAnalytics {
	opts = opts.withDefaults()

	result := &models.EventAnalytics{
		TotalRegistrations: len(registrations),
		StatusBreakdown:    make(map[string]int),
	}

	events := make(map[string]*eventTotals)
	locations := make(map[string]*locationTotals)
	attendees := make(map[string]struct{})
	categories := make(categoryTotals)
	tr := newTrends(opts.Now, eventDailyWindow)
	pr := newPeriods(opts.Now)

	var (
		revenue float64
		ratings []float64
	)

	for _, r := range registrations {
		result.StatusBreakdown[statusKey(r.Status)]++

		ev, ok := events[r.EventID]
		if !ok {
			ev = &eventTotals{
				stat: models.EventStat{
					EventID:    r.EventID,
					EventTitle: r.EventTitle,
					Category:   r.Category,
					Location:   r.Location,
				},
				date: r.EventDate,
			}
			events[r.EventID] = ev
		}

		loc := r.Location
		if loc == "" {
			loc = "unspecified"
		}
		lt, ok := locations[loc]
		if !ok {
			lt = &locationTotals{
				stat:   models.LocationStat{Location: loc},
				events: make(map[string]struct{}),
			}
			locations[loc] = lt
		}
		lt.events[r.EventID] = struct{}{}

		if r.AttendeeID != "" {
			attendees[r.AttendeeID] = struct{}{}
		}
		if r.Rating != nil {
			ratings = append(ratings, *r.Rating)
		}

		if isCancelled(r.Status) {
			continue
		}

		qty := r.Quantity
		if qty <= 0 {
			qty = 1
		}
		amount := r.TicketPrice * float64(qty)

		revenue += amount
		result.TicketsSold += qty

		ev.stat.Registrations++
		ev.stat.Tickets += qty
		ev.stat.Revenue += amount

		lt.stat.Registrations++
		lt.stat.Revenue += amount

		categories.add(r.Category, 1, amount)
		tr.add(r.CreatedAt, 1, amount)
		pr.add(r.CreatedAt, amount)
	}

	result.TotalEvents = len(events)
	for _, ev := range events {
		if ev.date.After(opts.Now) {
			result.UpcomingEvents++
		} else {
			result.PastEvents++
		}
	}

	result.TotalRevenue = round2(revenue)
	result.AverageTicketPrice = ratio(revenue, float64(result.TicketsSold))
	result.AverageAttendance = ratio(float64(result.TicketsSold), float64(result.TotalEvents))
	result.UniqueAttendees = len(attendees)
	result.RatingCount = len(ratings)
	result.AverageRating = mean(ratings)

	result.TopEvents = topN(rankEvents(events), opts.TopN)
	result.Locations = rankLocations(locations)
	result.Categories = categories.sorted()
	result.DailyTrend = tr.daily()
	result.MonthlyTrend = tr.monthly()
	result.Growth = pr.growth()

	return result
}

// rankEvents orders by registrations, then revenue, then event id
func rankEvents(events map[string]*eventTotals) []models.EventStat {
	out := make([]models.EventStat, 0, len(events))
	for _, ev := range events {
		s := ev.stat
		s.Revenue = round2(s.Revenue)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Registrations != out[j].Registrations {
			return out[i].Registrations > out[j].Registrations
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func rankLocations(locations map[string]*locationTotals) []models.LocationStat {
	out := make([]models.LocationStat, 0, len(locations))
	for _, lt := range locations {
		s := lt.stat
		s.Events = len(lt.events)
		s.Revenue = round2(s.Revenue)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Registrations != out[j].Registrations {
			return out[i].Registrations > out[j].Registrations
		}
		return out[i].Location < out[j].Location
	})
	return out
}

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-assistant/internal/models"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func ptr(v float64) *float64 { return &v }

func TestGrowthRate(t *testing.T) {
	assert.Equal(t, 100.0, GrowthRate(5, 0))
	assert.Equal(t, 0.0, GrowthRate(0, 0))
	assert.Equal(t, 50.0, GrowthRate(150, 100))
	assert.Equal(t, -50.0, GrowthRate(50, 100))
	assert.Equal(t, 33.33, GrowthRate(4, 3))
}

func sampleOrders() []models.OrderRow {
	return []models.OrderRow{
		{
			ID: "o1", CustomerID: "c1", Status: "completed", TotalAmount: 100, CreatedAt: daysAgo(1),
			Items: []models.OrderItemRow{
				{ProductID: "p1", ProductName: "Helmet", Category: "gear", Quantity: 1, UnitPrice: 100},
			},
		},
		{
			ID: "o2", CustomerID: "c2", Status: "completed", TotalAmount: 200, CreatedAt: daysAgo(2),
			Items: []models.OrderItemRow{
				{ProductID: "p2", ProductName: "Gloves", Category: "gear", Quantity: 5, UnitPrice: 40},
			},
		},
		{
			ID: "o3", CustomerID: "c1", Status: "shipped", TotalAmount: 300, CreatedAt: daysAgo(3),
			Items: []models.OrderItemRow{
				{ProductID: "p1", ProductName: "Helmet", Category: "gear", Quantity: 3, UnitPrice: 100},
			},
		},
	}
}

func TestBuildShopAnalytics(t *testing.T) {
	result := BuildShopAnalytics(sampleOrders(), Options{Now: testNow})

	assert.Equal(t, 600.0, result.TotalRevenue)
	assert.Equal(t, 3, result.TotalOrders)
	assert.Equal(t, 200.0, result.AverageOrderValue)
	assert.Equal(t, 2, result.UniqueCustomers)
	assert.Equal(t, 9, result.ItemsSold)

	require.Len(t, result.TopProducts, 2)
	assert.Equal(t, "p2", result.TopProducts[0].ProductID)
	assert.Equal(t, 5, result.TopProducts[0].Quantity)
	assert.Equal(t, "p1", result.TopProducts[1].ProductID)
	assert.Equal(t, 4, result.TopProducts[1].Quantity)
	assert.Equal(t, 400.0, result.TopProducts[1].Revenue)
	assert.GreaterOrEqual(t, result.TopProducts[0].Quantity, result.TopProducts[1].Quantity)

	assert.Equal(t, map[string]int{"completed": 2, "shipped": 1}, result.StatusBreakdown)
	require.Len(t, result.Categories, 1)
	assert.Equal(t, "gear", result.Categories[0].Category)
	assert.Equal(t, 600.0, result.Categories[0].Revenue)

	// all orders fall in the current period
	assert.Equal(t, 600.0, result.Growth.CurrentRevenue)
	assert.Equal(t, 100.0, result.Growth.RevenueGrowth)
	assert.Equal(t, 100.0, result.Growth.CountGrowth)

	assert.Equal(t, 0, result.RatingCount)
	assert.False(t, result.RatingIsPlaceholder)
}

func TestBuildShopAnalyticsTopProductsOrderedByQuantity(t *testing.T) {
	orders := []models.OrderRow{
		{ID: "o1", Status: "completed", TotalAmount: 10, CreatedAt: daysAgo(1), Items: []models.OrderItemRow{
			{ProductID: "a", Quantity: 1, UnitPrice: 10},
		}},
		{ID: "o2", Status: "completed", TotalAmount: 30, CreatedAt: daysAgo(1), Items: []models.OrderItemRow{
			{ProductID: "b", Quantity: 3, UnitPrice: 10},
		}},
		{ID: "o3", Status: "completed", TotalAmount: 20, CreatedAt: daysAgo(1), Items: []models.OrderItemRow{
			{ProductID: "c", Quantity: 2, UnitPrice: 10},
		}},
	}

	result := BuildShopAnalytics(orders, Options{Now: testNow, TopN: 2})

	require.Len(t, result.TopProducts, 2)
	assert.Equal(t, "b", result.TopProducts[0].ProductID)
	assert.Equal(t, "c", result.TopProducts[1].ProductID)
}

func TestBuildShopAnalyticsExcludesCancelledRevenue(t *testing.T) {
	orders := append(sampleOrders(), models.OrderRow{
		ID: "o4", CustomerID: "c3", Status: "cancelled", TotalAmount: 1000, CreatedAt: daysAgo(1),
		Items: []models.OrderItemRow{{ProductID: "p9", Quantity: 10, UnitPrice: 100}},
	})

	result := BuildShopAnalytics(orders, Options{Now: testNow})

	assert.Equal(t, 600.0, result.TotalRevenue)
	assert.Equal(t, 4, result.TotalOrders)
	assert.Equal(t, 1, result.StatusBreakdown["cancelled"])
	assert.Equal(t, 3, result.UniqueCustomers)
	for _, p := range result.TopProducts {
		assert.NotEqual(t, "p9", p.ProductID)
	}
}

func TestBuildShopAnalyticsGrowthAcrossPeriods(t *testing.T) {
	orders := []models.OrderRow{
		{ID: "cur", Status: "completed", TotalAmount: 150, CreatedAt: daysAgo(5)},
		{ID: "prev", Status: "completed", TotalAmount: 100, CreatedAt: daysAgo(40)},
		{ID: "old", Status: "completed", TotalAmount: 999, CreatedAt: daysAgo(90)},
	}

	result := BuildShopAnalytics(orders, Options{Now: testNow})

	assert.Equal(t, 150.0, result.Growth.CurrentRevenue)
	assert.Equal(t, 100.0, result.Growth.PreviousRevenue)
	assert.Equal(t, 50.0, result.Growth.RevenueGrowth)
	assert.Equal(t, 0.0, result.Growth.CountGrowth)
}

func TestBuildShopAnalyticsNoOrders(t *testing.T) {
	result := BuildShopAnalytics(nil, Options{Now: testNow})

	assert.Equal(t, 0.0, result.TotalRevenue)
	assert.Equal(t, 0, result.TotalOrders)
	assert.Equal(t, 0.0, result.AverageOrderValue)
	assert.Empty(t, result.TopProducts)
	assert.Equal(t, 0.0, result.Growth.RevenueGrowth)
	assert.Len(t, result.DailyTrend, 30)
	assert.Len(t, result.MonthlyTrend, 6)
}

func TestBuildShopAnalyticsTrends(t *testing.T) {
	result := BuildShopAnalytics(sampleOrders(), Options{Now: testNow})

	last := result.DailyTrend[len(result.DailyTrend)-1]
	assert.Equal(t, "2024-06-15", last.Date)
	assert.Equal(t, 0, last.Count)

	yesterday := result.DailyTrend[len(result.DailyTrend)-2]
	assert.Equal(t, "2024-06-14", yesterday.Date)
	assert.Equal(t, 1, yesterday.Count)
	assert.Equal(t, 100.0, yesterday.Revenue)

	assert.Equal(t, "2024-01", result.MonthlyTrend[0].Month)
	june := result.MonthlyTrend[5]
	assert.Equal(t, "2024-06", june.Month)
	assert.Equal(t, 3, june.Count)
	assert.Equal(t, 600.0, june.Revenue)
}

func TestBuildShopAnalyticsPlaceholderRatings(t *testing.T) {
	result := BuildShopAnalytics(sampleOrders(), Options{Now: testNow, PlaceholderRatings: true})

	assert.True(t, result.RatingIsPlaceholder)
	assert.Equal(t, 2, result.RatingCount)
	assert.Equal(t, PlaceholderRating, result.AverageRating)
}

func sampleBookings() []models.BookingRow {
	return []models.BookingRow{
		{ID: "b1", ServiceID: "s1", ServiceName: "Oil change", Category: "auto", CustomerID: "c1", Status: "completed", Price: 80, Rating: ptr(5), CreatedAt: daysAgo(1)},
		{ID: "b2", ServiceID: "s1", ServiceName: "Oil change", Category: "auto", CustomerID: "c2", Status: "completed", Price: 80, Rating: ptr(4), CreatedAt: daysAgo(2)},
		{ID: "b3", ServiceID: "s2", ServiceName: "Detailing", Category: "auto", CustomerID: "c1", Status: "confirmed", Price: 120, CreatedAt: daysAgo(3)},
		{ID: "b4", ServiceID: "s3", ServiceName: "Coaching", Category: "racing", CustomerID: "c3", Status: "cancelled", Price: 60, CreatedAt: daysAgo(4)},
		{ID: "b5", ServiceID: "s3", ServiceName: "Coaching", Category: "racing", CustomerID: "c3", Status: "completed", Price: 60, CreatedAt: daysAgo(40)},
	}
}

func TestBuildServiceAnalytics(t *testing.T) {
	result := BuildServiceAnalytics(sampleBookings(), Options{Now: testNow})

	assert.Equal(t, 5, result.TotalBookings)
	assert.Equal(t, 3, result.CompletedBookings)
	assert.Equal(t, 1, result.CancelledBookings)
	assert.Equal(t, 340.0, result.TotalRevenue)
	assert.Equal(t, 85.0, result.AverageBookingValue)
	assert.Equal(t, 60.0, result.CompletionRate)

	assert.Equal(t, 4.5, result.AverageRating)
	assert.Equal(t, 2, result.RatingCount)
	assert.False(t, result.RatingIsPlaceholder)

	assert.Equal(t, 3, result.UniqueCustomers)
	assert.Equal(t, 2, result.RepeatCustomers)

	require.Len(t, result.TopServices, 3)
	assert.Equal(t, "s1", result.TopServices[0].ServiceID)
	assert.Equal(t, 2, result.TopServices[0].Bookings)
	assert.Equal(t, 4.5, result.TopServices[0].AverageRating)
	assert.Equal(t, "s3", result.TopServices[1].ServiceID)

	assert.Len(t, result.DailyTrend, 7)
	assert.Equal(t, 280.0, result.Growth.CurrentRevenue)
	assert.Equal(t, 60.0, result.Growth.PreviousRevenue)

	require.Len(t, result.Categories, 2)
	assert.Equal(t, "auto", result.Categories[0].Category)
	assert.Equal(t, 3, result.Categories[0].Count)
}

func TestBuildServiceAnalyticsPlaceholderRatings(t *testing.T) {
	bookings := []models.BookingRow{
		{ID: "b1", ServiceID: "s1", CustomerID: "c1", Status: "completed", Price: 50, CreatedAt: daysAgo(1)},
		{ID: "b2", ServiceID: "s1", CustomerID: "c2", Status: "completed", Price: 50, Rating: ptr(3), CreatedAt: daysAgo(1)},
		{ID: "b3", ServiceID: "s1", CustomerID: "c3", Status: "pending", Price: 50, CreatedAt: daysAgo(1)},
	}

	off := BuildServiceAnalytics(bookings, Options{Now: testNow})
	assert.Equal(t, 1, off.RatingCount)
	assert.Equal(t, 3.0, off.AverageRating)
	assert.False(t, off.RatingIsPlaceholder)

	on := BuildServiceAnalytics(bookings, Options{Now: testNow, PlaceholderRatings: true})
	assert.Equal(t, 2, on.RatingCount)
	assert.Equal(t, 3.75, on.AverageRating)
	assert.True(t, on.RatingIsPlaceholder)
}

func TestBuildServiceAnalyticsIgnoresBookingsWithoutCustomer(t *testing.T) {
	bookings := []models.BookingRow{
		{ID: "b1", ServiceID: "s1", CustomerID: "c1", Status: "completed", Price: 50, CreatedAt: daysAgo(1)},
		{ID: "b2", ServiceID: "s1", CustomerID: "", Status: "completed", Price: 70, CreatedAt: daysAgo(1)},
		{ID: "b3", ServiceID: "s1", CustomerID: "", Status: "completed", Price: 70, CreatedAt: daysAgo(2)},
	}

	result := BuildServiceAnalytics(bookings, Options{Now: testNow})
	assert.Equal(t, 3, result.TotalBookings)
	assert.Equal(t, 190.0, result.TotalRevenue)
	assert.Equal(t, 1, result.UniqueCustomers)
	assert.Equal(t, 0, result.RepeatCustomers)
	require.Len(t, result.TopCustomers, 1)
	assert.Equal(t, "c1", result.TopCustomers[0].CustomerID)
}

func sampleRegistrations() []models.RegistrationRow {
	return []models.RegistrationRow{
		{ID: "r1", EventID: "e1", EventTitle: "Track day", Category: "racing", Location: "Monza", AttendeeID: "a1", Status: "confirmed", TicketPrice: 50, Quantity: 2, EventDate: testNow.AddDate(0, 0, 10), CreatedAt: daysAgo(1)},
		{ID: "r2", EventID: "e1", EventTitle: "Track day", Category: "racing", Location: "Monza", AttendeeID: "a2", Status: "confirmed", TicketPrice: 50, Quantity: 1, EventDate: testNow.AddDate(0, 0, 10), CreatedAt: daysAgo(2)},
		{ID: "r3", EventID: "e2", EventTitle: "Car meet", Category: "meetup", Location: "Berlin", AttendeeID: "a1", Status: "confirmed", TicketPrice: 0, EventDate: daysAgo(5), CreatedAt: daysAgo(20), Rating: ptr(4)},
		{ID: "r4", EventID: "e2", EventTitle: "Car meet", Category: "meetup", Location: "Berlin", AttendeeID: "a3", Status: "cancelled", TicketPrice: 0, EventDate: daysAgo(5), CreatedAt: daysAgo(21)},
	}
}

func TestBuildEventAnalytics(t *testing.T) {
	result := BuildEventAnalytics(sampleRegistrations(), Options{Now: testNow})

	assert.Equal(t, 2, result.TotalEvents)
	assert.Equal(t, 4, result.TotalRegistrations)
	assert.Equal(t, 4, result.TicketsSold)
	assert.Equal(t, 150.0, result.TotalRevenue)
	assert.Equal(t, 37.5, result.AverageTicketPrice)
	assert.Equal(t, 2.0, result.AverageAttendance)
	assert.Equal(t, 3, result.UniqueAttendees)
	assert.Equal(t, 1, result.UpcomingEvents)
	assert.Equal(t, 1, result.PastEvents)
	assert.Equal(t, 4.0, result.AverageRating)

	require.Len(t, result.TopEvents, 2)
	assert.Equal(t, "e1", result.TopEvents[0].EventID)
	assert.Equal(t, 2, result.TopEvents[0].Registrations)
	assert.Equal(t, 3, result.TopEvents[0].Tickets)

	require.Len(t, result.Locations, 2)
	assert.Equal(t, "Monza", result.Locations[0].Location)
	assert.Equal(t, 1, result.Locations[0].Events)
	assert.Equal(t, "Berlin", result.Locations[1].Location)
	assert.Equal(t, 1, result.Locations[1].Registrations)

	assert.Equal(t, map[string]int{"confirmed": 3, "cancelled": 1}, result.StatusBreakdown)
	assert.Equal(t, 3, result.Growth.CurrentCount)
	assert.Equal(t, 100.0, result.Growth.CountGrowth)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultTopN, o.TopN)
	assert.False(t, o.Now.IsZero())
}

package models

import "time"

// Status values shared by orders, bookings and registrations
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// OrderItemRow is a line of an order belonging to one vendor
type OrderItemRow struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Subtotal is quantity times unit price
func (i OrderItemRow) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// OrderRow is an order as fetched for shop analytics
type OrderRow struct {
	ID          string         `json:"id"`
	CustomerID  string         `json:"customer_id"`
	Status      string         `json:"status"`
	TotalAmount float64        `json:"total_amount"`
	CreatedAt   time.Time      `json:"created_at"`
	Items       []OrderItemRow `json:"items"`
}

// BookingRow is a service booking joined with its service and customer
type BookingRow struct {
	ID           string    `json:"id"`
	ServiceID    string    `json:"service_id"`
	ServiceName  string    `json:"service_name"`
	Category     string    `json:"category"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Status       string    `json:"status"`
	Price        float64   `json:"price"`
	Rating       *float64  `json:"rating,omitempty"`
	BookingDate  time.Time `json:"booking_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegistrationRow is an event registration joined with its event and attendee
type RegistrationRow struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	EventTitle   string    `json:"event_title"`
	Category     string    `json:"category"`
	Location     string    `json:"location"`
	AttendeeID   string    `json:"attendee_id"`
	AttendeeName string    `json:"attendee_name"`
	Status       string    `json:"status"`
	TicketPrice  float64   `json:"ticket_price"`
	Quantity     int       `json:"quantity"`
	Rating       *float64  `json:"rating,omitempty"`
	EventDate    time.Time `json:"event_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// DailyPoint is one day of a trend series
type DailyPoint struct {
	Date    string  `json:"date"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// MonthlyPoint is one calendar month of a trend series
type MonthlyPoint struct {
	Month   string  `json:"month"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// CategoryStat aggregates one category
type CategoryStat struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Revenue  float64 `json:"revenue"`
}

// ProductSales aggregates one product
type ProductSales struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

// CustomerStat aggregates one customer or attendee
type CustomerStat struct {
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name,omitempty"`
	Count        int     `json:"count"`
	TotalSpent   float64 `json:"total_spent"`
}

// Growth compares the trailing period with the period before it
type Growth struct {
	CurrentRevenue  float64 `json:"current_revenue"`
	PreviousRevenue float64 `json:"previous_revenue"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	CurrentCount    int     `json:"current_count"`
	PreviousCount   int     `json:"previous_count"`
	CountGrowth     float64 `json:"count_growth"`
}

// ShopAnalytics summarizes a vendor's orders
type ShopAnalytics struct {
	TotalRevenue        float64        `json:"total_revenue"`
	TotalOrders         int            `json:"total_orders"`
	AverageOrderValue   float64        `json:"average_order_value"`
	UniqueCustomers     int            `json:"unique_customers"`
	ItemsSold           int            `json:"items_sold"`
	AverageRating       float64        `json:"average_rating"`
	RatingCount         int            `json:"rating_count"`
	RatingIsPlaceholder bool           `json:"rating_is_placeholder"`
	TopProducts         []ProductSales `json:"top_products"`
	Categories          []CategoryStat `json:"categories"`
	StatusBreakdown     map[string]int `json:"status_breakdown"`
	DailyTrend          []DailyPoint   `json:"daily_trend"`
	MonthlyTrend        []MonthlyPoint `json:"monthly_trend"`
	Growth              Growth         `json:"growth"`
}

// ServiceStat aggregates one service
type ServiceStat struct {
	ServiceID     string  `json:"service_id"`
	ServiceName   string  `json:"service_name"`
	Category      string  `json:"category"`
	Bookings      int     `json:"bookings"`
	Revenue       float64 `json:"revenue"`
	AverageRating float64 `json:"average_rating"`
}

// ServiceAnalytics summarizes a provider's bookings
type ServiceAnalytics struct {
	TotalBookings       int            `json:"total_bookings"`
	CompletedBookings   int            `json:"completed_bookings"`
	CancelledBookings   int            `json:"cancelled_bookings"`
	TotalRevenue        float64        `json:"total_revenue"`
	AverageBookingValue float64        `json:"average_booking_value"`
	CompletionRate      float64        `json:"completion_rate"`
	AverageRating       float64        `json:"average_rating"`
	RatingCount         int            `json:"rating_count"`
	RatingIsPlaceholder bool           `json:"rating_is_placeholder"`
	UniqueCustomers     int            `json:"unique_customers"`
	RepeatCustomers     int            `json:"repeat_customers"`
	TopServices         []ServiceStat  `json:"top_services"`
	TopCustomers        []CustomerStat `json:"top_customers"`
	Categories          []CategoryStat `json:"categories"`
	StatusBreakdown     map[string]int `json:"status_breakdown"`
	DailyTrend          []DailyPoint   `json:"daily_trend"`
	MonthlyTrend        []MonthlyPoint `json:"monthly_trend"`
	Growth              Growth         `json:"growth"`
}

// EventStat aggregates one event
type EventStat struct {
	EventID       string  `json:"event_id"`
	EventTitle    string  `json:"event_title"`
	Category      string  `json:"category"`
	Location      string  `json:"location"`
	Registrations int     `json:"registrations"`
	Tickets       int     `json:"tickets"`
	Revenue       float64 `json:"revenue"`
}

// LocationStat aggregates one event location
type LocationStat struct {
	Location      string  `json:"location"`
	Events        int     `json:"events"`
	Registrations int     `json:"registrations"`
	Revenue       float64 `json:"revenue"`
}

// EventAnalytics summarizes an organizer's registrations
type EventAnalytics struct {
	TotalEvents        int            `json:"total_events"`
	TotalRegistrations int            `json:"total_registrations"`
	TicketsSold        int            `json:"tickets_sold"`
	TotalRevenue       float64        `json:"total_revenue"`
	AverageTicketPrice float64        `json:"average_ticket_price"`
	AverageAttendance  float64        `json:"average_attendance"`
	UniqueAttendees    int            `json:"unique_attendees"`
	AverageRating      float64        `json:"average_rating"`
	RatingCount        int            `json:"rating_count"`
	UpcomingEvents     int            `json:"upcoming_events"`
	PastEvents         int            `json:"past_events"`
	TopEvents          []EventStat    `json:"top_events"`
	Categories         []CategoryStat `json:"categories"`
	Locations          []LocationStat `json:"locations"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
	DailyTrend         []DailyPoint   `json:"daily_trend"`
	MonthlyTrend       []MonthlyPoint `json:"monthly_trend"`
	Growth             Growth         `json:"growth"`
}

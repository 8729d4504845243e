package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/models"
)

// AnalyticsRepository fetches the raw rows analytics are built from. Every
// query is scoped to one owner and returns typed rows.
type AnalyticsRepository struct {
	db           *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *AnalyticsRepository {
	timeout := cfg.Analytics.QueryTimeout
	if timeout <= 0 {
		timeout = cfg.Database.QueryTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AnalyticsRepository{
		db:           db,
		queryTimeout: timeout,
		logger:       logger,
	}
}

// ShopOrders returns the orders containing products of a vendor, with the
// vendor's line items attached
func (r *AnalyticsRepository) ShopOrders(ctx context.Context, vendorID string) ([]models.OrderRow, error) {
	if vendorID == "" {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT o.id::text, COALESCE(o.customer_id::text, ''), COALESCE(o.status, 'pending'),
		       COALESCE(o.total_amount, 0)::float8, o.created_at,
		       oi.product_id::text, COALESCE(p.name, ''), COALESCE(p.category, ''),
		       COALESCE(oi.quantity, 0), COALESCE(oi.unit_price, 0)::float8
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id
		WHERE p.vendor_id::text = $1
		ORDER BY o.created_at, o.id`

	rows, err := r.db.Query(ctx, query, vendorID)
	if err != nil {
		r.logger.Error("failed to query shop orders", zap.Error(err), zap.String("vendor_id", vendorID))
		return nil, fmt.Errorf("failed to query shop orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.OrderRow, 0)
	index := make(map[string]int)

	for rows.Next() {
		var (
			o    models.OrderRow
			item models.OrderItemRow
		)
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.Status, &o.TotalAmount, &o.CreatedAt,
			&item.ProductID, &item.ProductName, &item.Category, &item.Quantity, &item.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shop order: %w", err)
		}

		i, ok := index[o.ID]
		if !ok {
			i = len(orders)
			index[o.ID] = i
			orders = append(orders, o)
		}
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shop orders: %w", err)
	}

	r.logger.Debug("shop orders fetched",
		zap.String("vendor_id", vendorID),
		zap.Int("orders", len(orders)),
		zap.Duration("duration", time.Since(start)))

	return orders, nil
}

// ServiceBookings returns the bookings of every service offered by a provider
func (r *AnalyticsRepository) ServiceBookings(ctx context.Context, providerID string) ([]models.BookingRow, error) {
	if providerID == "" {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT b.id::text, b.service_id::text, COALESCE(s.name, ''), COALESCE(s.category, ''),
		       COALESCE(b.customer_id::text, ''), COALESCE(pr.full_name, ''),
		       COALESCE(b.status, 'pending'), COALESCE(b.total_price, s.price, 0)::float8,
		       b.rating::float8, b.booking_date, b.created_at
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		LEFT JOIN profiles pr ON pr.id = b.customer_id
		WHERE s.provider_id::text = $1
		ORDER BY b.created_at, b.id`

	rows, err := r.db.Query(ctx, query, providerID)
	if err != nil {
		r.logger.Error("failed to query service bookings", zap.Error(err), zap.String("provider_id", providerID))
		return nil, fmt.Errorf("failed to query service bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.BookingRow, 0)
	for rows.Next() {
		var (
			b           models.BookingRow
			bookingDate *time.Time
		)
		if err := rows.Scan(
			&b.ID, &b.ServiceID, &b.ServiceName, &b.Category,
			&b.CustomerID, &b.CustomerName,
			&b.Status, &b.Price,
			&b.Rating, &bookingDate, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan service booking: %w", err)
		}
		if bookingDate != nil {
			b.BookingDate = *bookingDate
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service bookings: %w", err)
	}

	r.logger.Debug("service bookings fetched",
		zap.String("provider_id", providerID),
		zap.Int("bookings", len(bookings)),
		zap.Duration("duration", time.Since(start)))

	return bookings, nil
}

// EventRegistrations returns the registrations for every event of an organizer
func (r *AnalyticsRepository) EventRegistrations(ctx context.Context, organizerID string) ([]models.RegistrationRow, error) {
	if organizerID == "" {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT r.id::text, r.event_id::text, COALESCE(e.title, ''), COALESCE(e.category, ''),
		       COALESCE(e.location, ''), COALESCE(r.user_id::text, ''), COALESCE(pr.full_name, ''),
		       COALESCE(r.status, 'confirmed'), COALESCE(e.ticket_price, 0)::float8,
		       COALESCE(r.quantity, 1), r.rating::float8, e.event_date, r.created_at
		FROM event_registrations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN profiles pr ON pr.id = r.user_id
		WHERE e.organizer_id::text = $1
		ORDER BY r.created_at, r.id`

	rows, err := r.db.Query(ctx, query, organizerID)
	if err != nil {
		r.logger.Error("failed to query event registrations", zap.Error(err), zap.String("organizer_id", organizerID))
		return nil, fmt.Errorf("failed to query event registrations: %w", err)
	}
	defer rows.Close()

	registrations := make([]models.RegistrationRow, 0)
	for rows.Next() {
		var (
			reg       models.RegistrationRow
			eventDate *time.Time
		)
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.EventTitle, &reg.Category,
			&reg.Location, &reg.AttendeeID, &reg.AttendeeName,
			&reg.Status, &reg.TicketPrice,
			&reg.Quantity, &reg.Rating, &eventDate, &reg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event registration: %w", err)
		}
		if eventDate != nil {
			reg.EventDate = *eventDate
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event registrations: %w", err)
	}

	r.logger.Debug("event registrations fetched",
		zap.String("organizer_id", organizerID),
		zap.Int("registrations", len(registrations)),
		zap.Duration("duration", time.Since(start)))

	return registrations, nil
}

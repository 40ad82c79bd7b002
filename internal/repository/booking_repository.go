package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
)

// BookingRepo provides data access to the bookings and booking_seats
// tables. Bookings are immutable after confirmation except for the status
// column, which a cancellation flips to CANCELLED. Seat order within a
// booking is preserved via the seat_no column.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a confirmed booking and its seats in one transaction.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings (id, user_id, showtime_id, total_price_cents, status, created_at)
	             VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		b.ID, b.UserID, b.ShowtimeID, b.TotalPriceCents, string(b.Status),
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05")); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if len(b.SeatIDs) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_id, seat_no) VALUES `
		args := make([]interface{}, 0, len(b.SeatIDs)*3)
		for i, seatID := range b.SeatIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, seatID, i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert booking seats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// GetByIDForUser loads one booking with its seats. Returns
// ErrBookingNotFound when the ID does not exist and ErrForbidden when the
// booking belongs to a different user.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	const q = `SELECT id, user_id, showtime_id, total_price_cents, status, created_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	var status string
	var created time.Time
	err := r.db.QueryRowContext(ctx, q, bookingID).
		Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.TotalPriceCents, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	b.Status = model.BookingStatus(status)
	b.CreatedAt = created
	if b.SeatIDs, err = r.seatsOf(ctx, bookingID); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatus flips a booking's status. The only legal post-commit
// mutation.
func (r *BookingRepo) UpdateStatus(ctx context.Context, bookingID string, status model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ?`, string(status), bookingID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ListByUser returns all bookings of one user, newest first, with seats.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const q = `SELECT id, user_id, showtime_id, total_price_cents, status, created_at
	           FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.TotalPriceCents, &status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].SeatIDs, err = r.seatsOf(ctx, bookings[i].ID); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// BookedSeatsByShowtime returns seat label → booking ID for every seat of
// a showtime that belongs to a CONFIRMED booking. The seat store uses this
// to seed a showtime's map on first access after a restart.
func (r *BookingRepo) BookedSeatsByShowtime(ctx context.Context, showtimeID string) (map[string]string, error) {
	const q = `SELECT bs.seat_id, bs.booking_id
	           FROM booking_seats bs
	           JOIN bookings b ON b.id = bs.booking_id
	           WHERE b.showtime_id = ? AND b.status = 'CONFIRMED'`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make(map[string]string)
	for rows.Next() {
		var seatID, bookingID string
		if err := rows.Scan(&seatID, &bookingID); err != nil {
			return nil, err
		}
		seats[seatID] = bookingID
	}
	return seats, rows.Err()
}

func (r *BookingRepo) seatsOf(ctx context.Context, bookingID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_no`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var seatID string
		if err := rows.Scan(&seatID); err != nil {
			return nil, err
		}
		seats = append(seats, seatID)
	}
	return seats, rows.Err()
}

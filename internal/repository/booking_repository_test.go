package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningtable/breakfast-market/internal/model"
)

var bookingTestColumns = []string{
	"id", "user_id", "provider_id",
	"delivery_date", "delivery_time", "delivery_type",
	"address_street", "address_city", "address_zip", "address_country", "address_notes",
	"special_instructions",
	"subtotal_cents", "delivery_fee_cents", "tax_cents", "total_cents",
	"payment_method", "payment_status", "payment_intent_id", "paid_at",
	"status", "review_rating", "review_comment", "review_created_at",
	"created_at", "updated_at",
}

func addBookingRow(rows *sqlmock.Rows, id, userID uint64, at time.Time) {
	rows.AddRow(
		id, userID, uint64(3),
		"2026-09-06", "07:30", model.DeliveryTypePickup,
		nil, nil, nil, nil, nil,
		"",
		uint32(1200), uint32(0), uint32(0), uint32(1200),
		model.MethodCard, model.PaymentPending, nil, nil,
		model.StatusPending, nil, nil, nil,
		at, at,
	)
}

// Every booking in a listing must keep its own line items, not just the
// last row scanned.
func TestListByUserKeepsItemsOnEveryBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(bookingTestColumns)
	addBookingRow(rows, 1, 7, now)
	addBookingRow(rows, 2, 7, now)
	addBookingRow(rows, 3, 7, now)
	mock.ExpectQuery(`FROM bookings WHERE user_id`).
		WithArgs(uint64(7)).
		WillReturnRows(rows)

	itemRows := sqlmock.NewRows([]string{"id", "booking_id", "menu_item_id", "name", "price_cents", "quantity"}).
		AddRow(uint64(11), uint64(1), uint64(10), "croissant", uint32(400), uint32(3)).
		AddRow(uint64(12), uint64(2), uint64(10), "croissant", uint32(400), uint32(3)).
		AddRow(uint64(13), uint64(3), uint64(10), "croissant", uint32(400), uint32(3))
	mock.ExpectQuery(`FROM booking_items WHERE booking_id IN`).
		WithArgs(uint64(1), uint64(2), uint64(3)).
		WillReturnRows(itemRows)

	repo := NewBookingRepo(db)
	bookings, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, bookings, 3)

	for _, b := range bookings {
		require.Len(t, b.Items, 1, "booking %d lost its line items", b.ID)
		assert.Equal(t, b.ID, b.Items[0].BookingID)
		assert.Equal(t, "croissant", b.Items[0].Name)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDLoadsItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(bookingTestColumns)
	addBookingRow(rows, 5, 7, now)
	mock.ExpectQuery(`FROM bookings WHERE id`).WithArgs(uint64(5)).WillReturnRows(rows)

	itemRows := sqlmock.NewRows([]string{"id", "booking_id", "menu_item_id", "name", "price_cents", "quantity"}).
		AddRow(uint64(21), uint64(5), uint64(10), "granola bowl", uint32(1200), uint32(1))
	mock.ExpectQuery(`FROM booking_items WHERE booking_id IN`).
		WithArgs(uint64(5)).
		WillReturnRows(itemRows)

	repo := NewBookingRepo(db)
	b, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, "granola bowl", b.Items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/morningtable/breakfast-market/internal/model"
)

// BookingRepo provides persistence for bookings and their line items.
// Status changes go through conditional updates that name the expected
// current state in the WHERE clause, so concurrent writers (the synchronous
// payment confirmation and the webhook) converge on the same row without
// locks: whichever lands first performs the mutation and the loser's update
// matches zero rows.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for handler-scoped transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, user_id, provider_id,
	DATE_FORMAT(delivery_date, '%Y-%m-%d'), delivery_time, delivery_type,
	address_street, address_city, address_zip, address_country, address_notes,
	special_instructions,
	subtotal_cents, delivery_fee_cents, tax_cents, total_cents,
	payment_method, payment_status, payment_intent_id, paid_at,
	status, review_rating, review_comment, review_created_at,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var street, city, zip, country, notes, instructions sql.NullString
	var intentID sql.NullString
	var paidAt, reviewAt sql.NullTime
	var rating sql.NullInt16
	var comment sql.NullString
	if err := row.Scan(
		&b.ID, &b.UserID, &b.ProviderID,
		&b.DeliveryDate, &b.DeliveryTime, &b.DeliveryType,
		&street, &city, &zip, &country, &notes,
		&instructions,
		&b.Pricing.SubtotalCents, &b.Pricing.DeliveryFeeCents, &b.Pricing.TaxCents, &b.Pricing.TotalCents,
		&b.Payment.Method, &b.Payment.Status, &intentID, &paidAt,
		&b.Status, &rating, &comment, &reviewAt,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if b.DeliveryType == model.DeliveryTypeDelivery {
		b.DeliveryAddress = &model.Address{
			Street:  street.String,
			City:    city.String,
			ZipCode: zip.String,
			Country: country.String,
			Notes:   notes.String,
		}
	}
	b.SpecialInstructions = instructions.String
	if intentID.Valid {
		id := intentID.String
		b.Payment.IntentID = &id
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		b.Payment.PaidAt = &t
	}
	if rating.Valid {
		b.Review = &model.Review{
			Rating:    uint8(rating.Int16),
			Comment:   comment.String,
			CreatedAt: reviewAt.Time.UTC(),
		}
	}
	return &b, nil
}

// CreateTx inserts a booking and its line items within the given
// transaction, populating the generated IDs and timestamps on the provided
// struct.  Status and payment status must both be "pending"; the snapshots
// in b.Items are assumed to have been taken from the menu already.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
		(user_id, provider_id, delivery_date, delivery_time, delivery_type,
		 address_street, address_city, address_zip, address_country, address_notes,
		 special_instructions,
		 subtotal_cents, delivery_fee_cents, tax_cents, total_cents,
		 payment_method, payment_status, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	var street, city, zip, country, notes any
	if a := b.DeliveryAddress; a != nil {
		street, city, zip, country, notes = a.Street, a.City, a.ZipCode, a.Country, a.Notes
	}
	res, err := tx.ExecContext(ctx, q,
		b.UserID, b.ProviderID, b.DeliveryDate, b.DeliveryTime, b.DeliveryType,
		street, city, zip, country, notes,
		b.SpecialInstructions,
		b.Pricing.SubtotalCents, b.Pricing.DeliveryFeeCents, b.Pricing.TaxCents, b.Pricing.TotalCents,
		b.Payment.Method, model.PaymentPending, model.StatusPending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = model.StatusPending
	b.Payment.Status = model.PaymentPending

	for i := range b.Items {
		it := &b.Items[i]
		it.BookingID = b.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booking_items (booking_id, menu_item_id, name, price_cents, quantity) VALUES (?,?,?,?,?)`,
			b.ID, it.MenuItemID, it.Name, it.PriceCents, it.Quantity)
		if err != nil {
			return err
		}
		iid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = uint64(iid)
	}

	// Read back server-side timestamps.
	return tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetByID returns a booking and its line items.  ErrBookingNotFound is
// returned when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return r.list(ctx, `user_id = ?`, `created_at DESC`, userID)
}

// ListByProvider returns the provider's bookings ordered by delivery date
// descending, matching how a vendor works through upcoming orders.
func (r *BookingRepo) ListByProvider(ctx context.Context, providerID uint64) ([]model.Booking, error) {
	return r.list(ctx, `provider_id = ?`, `delivery_date DESC, id DESC`, providerID)
}

func (r *BookingRepo) list(ctx context.Context, where, order string, arg any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+where+` ORDER BY `+order, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Take pointers only once the slice has stopped growing; an append above
	// may reallocate the backing array and strand earlier pointers.
	refs := make([]*model.Booking, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems populates Items for every booking in one query.
func (r *BookingRepo) loadItems(ctx context.Context, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[uint64]*model.Booking, len(bookings))
	q := `SELECT id, booking_id, menu_item_id, name, price_cents, quantity
		FROM booking_items WHERE booking_id IN (`
	args := make([]any, 0, len(bookings))
	for i, b := range bookings {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, b.ID)
		index[b.ID] = b
		b.Items = []model.BookingItem{}
	}
	q += `) ORDER BY booking_id, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.BookingItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.MenuItemID, &it.Name, &it.PriceCents, &it.Quantity); err != nil {
			return err
		}
		if b, ok := index[it.BookingID]; ok {
			b.Items = append(b.Items, it)
		}
	}
	return rows.Err()
}

// AdvanceStatus moves a booking from one status to the next.  The expected
// current status is part of the WHERE clause, so an out-of-date caller
// matches zero rows instead of clobbering a newer state.  It returns true
// when the transition was applied.
func (r *BookingRepo) AdvanceStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status=? WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Cancel sets a booking to cancelled, but only while it is still pending or
// confirmed.  It returns true when the row was cancelled.
func (r *BookingRepo) Cancel(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status=? WHERE id=? AND status IN (?,?)`,
		model.StatusCancelled, id, model.StatusPending, model.StatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetPaymentIntent stores the external payment intent reference on a
// booking after the gateway created it.
func (r *BookingRepo) SetPaymentIntent(ctx context.Context, id uint64, intentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_intent_id=? WHERE id=?`, intentID, id)
	return err
}

// ConfirmPayment marks the booking paid and confirmed, conditional on it
// still being pending.  Both the synchronous confirmation path and the
// webhook funnel through the same statement; a second arrival matches zero
// rows and is a safe no-op.  It returns true when this call performed the
// transition.
func (r *BookingRepo) ConfirmPayment(ctx context.Context, id uint64, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status=?, paid_at=?, status=?
		 WHERE id=? AND status=?`,
		model.PaymentCompleted, paidAt.UTC(), model.StatusConfirmed,
		id, model.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ConfirmPaymentByIntent is the webhook-side variant of ConfirmPayment,
// keyed by the gateway's intent reference instead of the booking ID.  The
// returned booking is nil when no booking carries the intent reference.
func (r *BookingRepo) ConfirmPaymentByIntent(ctx context.Context, intentID string, paidAt time.Time) (*model.Booking, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status=?, paid_at=?, status=?
		 WHERE payment_intent_id=? AND status=?`,
		model.PaymentCompleted, paidAt.UTC(), model.StatusConfirmed,
		intentID, model.StatusPending)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	b, err := r.getByIntent(ctx, intentID)
	if err == ErrBookingNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, n > 0, nil
}

// FailPaymentByIntent records a failed payment attempt.  The booking's
// status is deliberately left alone: a failed payment does not auto-cancel
// the order.  It returns true when a matching booking was updated.
func (r *BookingRepo) FailPaymentByIntent(ctx context.Context, intentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status=? WHERE payment_intent_id=? AND payment_status=?`,
		model.PaymentFailed, intentID, model.PaymentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *BookingRepo) getByIntent(ctx context.Context, intentID string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = ?`, intentID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// AttachReviewTx writes a review onto a booking within the caller's
// transaction.  Reviews are write-once: the update is conditional on
// review_rating still being NULL and a second attempt returns ErrConflict
// leaving the original untouched.
func (r *BookingRepo) AttachReviewTx(ctx context.Context, tx *sql.Tx, bookingID uint64, rating uint8, comment string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET review_rating=?, review_comment=?, review_created_at=?
		 WHERE id=? AND review_rating IS NULL`,
		rating, comment, at.UTC(), bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/morningtable/breakfast-market/internal/model"
)

// ProviderRepo provides CRUD operations for provider profiles.  The
// rating_average/rating_count columns form a derived aggregate over the
// bookings table; they are only ever written through RecomputeRatingTx and
// are deliberately excluded from Update so no client payload can touch them.
type ProviderRepo struct {
	db *sql.DB
}

// NewProviderRepo returns a new ProviderRepo bound to the given database.
func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions that
// span multiple repositories.
func (r *ProviderRepo) DB() *sql.DB { return r.db }

const providerColumns = `id, user_id, business_name, description, cuisine,
	offers_delivery, offers_pickup, delivery_fee_cents, minimum_order_cents,
	street, city, zip_code, country, rating_average, rating_count, active,
	created_at, updated_at`

func scanProvider(row interface{ Scan(...any) error }) (*model.Provider, error) {
	var p model.Provider
	var cuisine string
	if err := row.Scan(
		&p.ID, &p.UserID, &p.BusinessName, &p.Description, &cuisine,
		&p.OffersDelivery, &p.OffersPickup, &p.DeliveryFeeCents, &p.MinimumOrderCents,
		&p.Street, &p.City, &p.ZipCode, &p.Country,
		&p.Rating.Average, &p.Rating.Count, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Cuisine = splitCuisine(cuisine)
	return &p, nil
}

// splitCuisine converts the comma-separated cuisine column into a slice.
func splitCuisine(s string) []string {
	out := make([]string, 0, 4)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinCuisine(cs []string) string {
	clean := make([]string, 0, len(cs))
	for _, c := range cs {
		if c = strings.TrimSpace(strings.ToLower(c)); c != "" {
			clean = append(clean, c)
		}
	}
	return strings.Join(clean, ",")
}

// Create inserts a provider profile for the given user.  Each user may own
// at most one profile; a second insert fails with ErrConflict via the unique
// key on user_id.
func (r *ProviderRepo) Create(ctx context.Context, p *model.Provider) error {
	const q = `INSERT INTO providers
		(user_id, business_name, description, cuisine, offers_delivery, offers_pickup,
		 delivery_fee_cents, minimum_order_cents, street, city, zip_code, country, active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		p.UserID, p.BusinessName, p.Description, joinCuisine(p.Cuisine),
		p.OffersDelivery, p.OffersPickup, p.DeliveryFeeCents, p.MinimumOrderCents,
		p.Street, p.City, p.ZipCode, p.Country, p.Active)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID returns a provider by primary key.  ErrProviderNotFound is
// returned when no row matches.
func (r *ProviderRepo) GetByID(ctx context.Context, id uint64) (*model.Provider, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	return p, err
}

// GetByUserID returns the profile owned by the given user, if any.
func (r *ProviderRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Provider, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE user_id = ?`, userID)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	return p, err
}

// ListFilter narrows the provider listing.  Zero values mean "no filter".
type ListFilter struct {
	Cuisine   string  // match any provider whose cuisine list contains this value
	Delivery  bool    // only providers offering delivery
	Pickup    bool    // only providers offering pickup
	MinRating float64 // minimum rating_average
}

// List returns all active providers matching the filter, best rated first.
func (r *ProviderRepo) List(ctx context.Context, f ListFilter) ([]model.Provider, error) {
	q := `SELECT ` + providerColumns + ` FROM providers WHERE active = 1`
	args := make([]any, 0, 4)
	if f.Cuisine != "" {
		// cuisine is stored as a comma-separated list; FIND_IN_SET matches
		// whole entries only.
		q += ` AND FIND_IN_SET(?, cuisine) > 0`
		args = append(args, strings.ToLower(strings.TrimSpace(f.Cuisine)))
	}
	if f.Delivery {
		q += ` AND offers_delivery = 1`
	}
	if f.Pickup {
		q += ` AND offers_pickup = 1`
	}
	if f.MinRating > 0 {
		q += ` AND rating_average >= ?`
		args = append(args, f.MinRating)
	}
	q += ` ORDER BY rating_average DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update rewrites the editable profile fields of a provider.  Ownership must
// be checked by the caller before invoking Update; rating fields are not
// touched here.
func (r *ProviderRepo) Update(ctx context.Context, p *model.Provider) error {
	const q = `UPDATE providers SET
		business_name=?, description=?, cuisine=?, offers_delivery=?, offers_pickup=?,
		delivery_fee_cents=?, minimum_order_cents=?, street=?, city=?, zip_code=?, country=?, active=?
		WHERE id=?`
	res, err := r.db.ExecContext(ctx, q,
		p.BusinessName, p.Description, joinCuisine(p.Cuisine),
		p.OffersDelivery, p.OffersPickup, p.DeliveryFeeCents, p.MinimumOrderCents,
		p.Street, p.City, p.ZipCode, p.Country, p.Active, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the row is gone or nothing changed; confirm existence.
		var id uint64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM providers WHERE id=?`, p.ID).Scan(&id); err == sql.ErrNoRows {
			return ErrProviderNotFound
		}
	}
	return nil
}

// RecomputeRatingTx rebuilds the provider's rating aggregate from the full
// set of reviewed bookings, inside the caller's transaction.  Running it in
// the same transaction as the review write keeps the aggregate consistent
// with its source.
func (r *ProviderRepo) RecomputeRatingTx(ctx context.Context, tx *sql.Tx, providerID uint64) error {
	const agg = `SELECT COALESCE(AVG(review_rating), 0), COUNT(review_rating)
		FROM bookings WHERE provider_id = ? AND review_rating IS NOT NULL`
	var avg float64
	var count uint32
	if err := tx.QueryRowContext(ctx, agg, providerID).Scan(&avg, &count); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE providers SET rating_average=?, rating_count=? WHERE id=?`,
		avg, count, providerID)
	return err
}

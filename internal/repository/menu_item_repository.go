package repository

import (
	"context"
	"database/sql"

	"github.com/morningtable/breakfast-market/internal/model"
)

// MenuItemRepo provides CRUD operations for a provider's menu.  Booking
// creation reads current name and price through GetManyForProviderTx so line
// item snapshots come from the menu as it exists at checkout, never from the
// client payload.
type MenuItemRepo struct {
	db *sql.DB
}

// NewMenuItemRepo returns a new MenuItemRepo bound to the given database.
func NewMenuItemRepo(db *sql.DB) *MenuItemRepo { return &MenuItemRepo{db: db} }

const menuItemColumns = `id, provider_id, name, description, price_cents, category, available, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...any) error }) (*model.MenuItem, error) {
	var m model.MenuItem
	if err := row.Scan(&m.ID, &m.ProviderID, &m.Name, &m.Description,
		&m.PriceCents, &m.Category, &m.Available, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a menu item under the given provider.
func (r *MenuItemRepo) Create(ctx context.Context, m *model.MenuItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_items (provider_id, name, description, price_cents, category, available)
		 VALUES (?,?,?,?,?,?)`,
		m.ProviderID, m.Name, m.Description, m.PriceCents, m.Category, m.Available)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// GetByID returns a single menu item.
func (r *MenuItemRepo) GetByID(ctx context.Context, id uint64) (*model.MenuItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = ?`, id)
	m, err := scanMenuItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrMenuItemNotFound
	}
	return m, err
}

// ListByProvider returns a provider's menu, optionally restricted to
// available items.
func (r *MenuItemRepo) ListByProvider(ctx context.Context, providerID uint64, onlyAvailable bool) ([]model.MenuItem, error) {
	q := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE provider_id = ?`
	if onlyAvailable {
		q += ` AND available = 1`
	}
	q += ` ORDER BY category, name`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.MenuItem, 0)
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update rewrites an item's editable fields.
func (r *MenuItemRepo) Update(ctx context.Context, m *model.MenuItem) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET name=?, description=?, price_cents=?, category=?, available=? WHERE id=?`,
		m.Name, m.Description, m.PriceCents, m.Category, m.Available, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id uint64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM menu_items WHERE id=?`, m.ID).Scan(&id); err == sql.ErrNoRows {
			return ErrMenuItemNotFound
		}
	}
	return nil
}

// Delete removes a menu item.  Bookings keep their snapshots, so deleting an
// item never disturbs order history.
func (r *MenuItemRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// GetManyForProviderTx loads the requested menu items within a transaction,
// verifying each belongs to the given provider and is currently available.
// The result maps item ID to its row; a missing key means the item cannot be
// ordered.
func (r *MenuItemRepo) GetManyForProviderTx(ctx context.Context, tx *sql.Tx, providerID uint64, ids []uint64) (map[uint64]model.MenuItem, error) {
	out := make(map[uint64]model.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE provider_id = ? AND available = 1 AND id IN (`
	args := make([]any, 0, len(ids)+1)
	args = append(args, providerID)
	for i, id := range ids {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, id)
	}
	q += ")"
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out[m.ID] = *m
	}
	return out, rows.Err()
}

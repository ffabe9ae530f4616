package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	threatDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/threat"
	"github.com/jmoiron/sqlx"
)

const selectThreats = `
SELECT t.id, t.latitude, t.longitude, t.category_id, t.date_from, t.date_to,
       c.name AS category_name, c.date_from AS category_date_from
FROM threats t
JOIN threat_categories c ON c.id = t.category_id`

type threatRow struct {
	ID               int64      `db:"id"`
	Latitude         float64    `db:"latitude"`
	Longitude        float64    `db:"longitude"`
	CategoryID       int64      `db:"category_id"`
	DateFrom         time.Time  `db:"date_from"`
	DateTo           *time.Time `db:"date_to"`
	CategoryName     string     `db:"category_name"`
	CategoryDateFrom time.Time  `db:"category_date_from"`
}

func (r threatRow) toDatamodel() threatDatamodel.Threat {
	t := threatDatamodel.Threat{
		ID:         r.ID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		CategoryID: r.CategoryID,
		Category: threatDatamodel.Category{
			ID:   r.CategoryID,
			Name: r.CategoryName,
		},
	}
	t.DateFrom = r.DateFrom
	t.DateTo = r.DateTo
	t.Category.DateFrom = r.CategoryDateFrom
	return t
}

// ThreatRepository reads and writes threat points with plain SQL.
type ThreatRepository struct {
	db *sqlx.DB
}

func NewThreatRepository(db *sqlx.DB) *ThreatRepository {
	return &ThreatRepository{db: db}
}

func (r *ThreatRepository) List(ctx context.Context, categoryID int64) ([]threatDatamodel.Threat, error) {
	query := selectThreats
	var args []interface{}
	if categoryID > 0 {
		query += " WHERE t.category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY t.id"

	var rows []threatRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]threatDatamodel.Threat, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDatamodel())
	}
	return out, nil
}

func (r *ThreatRepository) FindByID(ctx context.Context, id int64) (*threatDatamodel.Threat, error) {
	var row threatRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectThreats+" WHERE t.id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := row.toDatamodel()
	return &t, nil
}

// Create inserts the threat and sets its id and date_from.
func (r *ThreatRepository) Create(ctx context.Context, t *threatDatamodel.Threat) error {
	if t.DateFrom.IsZero() {
		t.DateFrom = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO threats (latitude, longitude, category_id, date_from)
VALUES (?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, query, t.Latitude, t.Longitude, t.CategoryID, t.DateFrom).Scan(&t.ID)
}

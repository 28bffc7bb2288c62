// Package postgres implements the link store on top of PostgreSQL. Link counters
// live in columns, the analytics aggregate in a JSONB column and the visitor set in
// a separate table keyed by (link_id, ip).
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

const (
	uniqueViolationErrCode      = "23505"
	serializationFailureErrCode = "40001"
	deadlockDetectedErrCode     = "40P01"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState()
	}
	return ""
}

func isUniqueViolationError(err error) bool {
	return pgErrCode(err) == uniqueViolationErrCode
}

func isConflictError(err error) bool {
	code := pgErrCode(err)
	return code == serializationFailureErrCode || code == deadlockDetectedErrCode
}

const linkColumns = `id, alias, target_url, owner_id, title, total_clicks, unique_clicks, analytics, version, created_at, updated_at`

// analyticsJSON stores entity.Analytics in a JSONB column.
type analyticsJSON entity.Analytics

func (a analyticsJSON) Value() (driver.Value, error) {
	b, err := json.Marshal(entity.Analytics(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *analyticsJSON) Scan(src any) error {
	var data []byte

	switch v := src.(type) {
	case nil:
		*a = analyticsJSON(entity.NewAnalytics())
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported analytics type %T", src)
	}

	var an entity.Analytics
	if err := json.Unmarshal(data, &an); err != nil {
		return err
	}

	*a = analyticsJSON(an)
	return nil
}

type linkDB struct {
	ID           int64          `db:"id"`
	Alias        string         `db:"alias"`
	TargetURL    string         `db:"target_url"`
	OwnerID      sql.NullString `db:"owner_id"`
	Title        string         `db:"title"`
	TotalClicks  int64          `db:"total_clicks"`
	UniqueClicks int64          `db:"unique_clicks"`
	Analytics    analyticsJSON  `db:"analytics"`
	Version      int64          `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (l *linkDB) toEntity() *entity.ShortLink {
	link := &entity.ShortLink{
		ID:        l.ID,
		Alias:     l.Alias,
		TargetURL: l.TargetURL,
		Title:     l.Title,
		Clicks: entity.Clicks{
			Total:  l.TotalClicks,
			Unique: l.UniqueClicks,
		},
		Analytics: entity.Analytics(l.Analytics),
		Version:   l.Version,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}

	if l.OwnerID.Valid {
		owner := l.OwnerID.String
		link.OwnerID = &owner
	}

	return link
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(alias, target_url, owner_id, title, analytics, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + linkColumns

	var l linkDB

	err := r.db.GetContext(ctx, &l, query,
		link.Alias,
		link.TargetURL,
		nullString(link.OwnerID),
		link.Title,
		analyticsJSON(link.Analytics),
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrAliasExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into links table: %w", op, err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveByAlias"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE alias = $1`

	var l linkDB

	if err := r.db.GetContext(ctx, &l, query, alias); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from links table: %w", op, err)
	}

	return l.toEntity(), nil
}

func (r *LinkRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	const op = "adapter.repository.postgres.LinkRepository.AliasExists"
	const query = `SELECT EXISTS(SELECT 1 FROM links WHERE alias = $1)`

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, alias); err != nil {
		return false, fmt.Errorf("%s: failed to check alias: %w", op, err)
	}

	return exists, nil
}

func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.ListByOwner"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	var rows []linkDB

	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("%s: failed to select from links table: %w", op, err)
	}

	links := make([]*entity.ShortLink, 0, len(rows))
	for i := range rows {
		links = append(links, rows[i].toEntity())
	}

	return links, nil
}

func (r *LinkRepository) HasVisitor(ctx context.Context, linkID int64, ip string) (bool, error) {
	const op = "adapter.repository.postgres.LinkRepository.HasVisitor"
	const query = `SELECT EXISTS(SELECT 1 FROM link_visitors WHERE link_id = $1 AND ip = $2)`

	if ip == "" {
		return false, nil
	}

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, linkID, ip); err != nil {
		return false, fmt.Errorf("%s: failed to check visitor: %w", op, err)
	}

	return exists, nil
}

// SaveVisit persists the counters and the aggregate of link and, when visitorIP is
// not empty, records it in the visitor set. Both happen in one transaction guarded
// by link.Version; entity.ErrVersionConflict is returned when the row or the visitor
// set was changed concurrently. On success link.Version is advanced.
func (r *LinkRepository) SaveVisit(ctx context.Context, link *entity.ShortLink, visitorIP string) (err error) {
	const op = "adapter.repository.postgres.LinkRepository.SaveVisit"
	const (
		insertVisitorQuery = `INSERT INTO link_visitors(link_id, ip) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		updateLinkQuery    = `UPDATE links
			SET total_clicks = $1, unique_clicks = $2, analytics = $3, version = version + 1, updated_at = $4
			WHERE id = $5 AND version = $6`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if visitorIP != "" {
		if err = execOne(ctx, tx, insertVisitorQuery, link.ID, visitorIP); err != nil {
			return fmt.Errorf("%s: failed to insert into link_visitors table: %w", op, err)
		}
	}

	err = execOne(ctx, tx, updateLinkQuery,
		link.Clicks.Total,
		link.Clicks.Unique,
		analyticsJSON(link.Analytics),
		link.UpdatedAt,
		link.ID,
		link.Version,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to update links table row: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		if isConflictError(err) {
			return fmt.Errorf("%s: %w", op, entity.ErrVersionConflict)
		}
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	link.Version++
	return nil
}

// execOne runs a statement that must affect exactly one row.
func execOne(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isConflictError(err) {
			return entity.ErrVersionConflict
		}
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get number of affected rows: %w", err)
	}

	if rowsAffected != 1 {
		return entity.ErrVersionConflict
	}

	return nil
}

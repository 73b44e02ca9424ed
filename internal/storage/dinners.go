package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dinnerSelect = `
SELECT d.date, d.head_chef_id, d.assistant_id, d.archived,
       COALESCE(h.name, ''), COALESCE(h.telegram_id, 0),
       COALESCE(a.name, ''), COALESCE(a.telegram_id, 0)
FROM dinners d
LEFT JOIN residents h ON h.id = d.head_chef_id
LEFT JOIN residents a ON a.id = d.assistant_id`

func scanDinner(r rowScanner) (Dinner, error) {
	var (
		d    Dinner
		date string
	)
	err := r.Scan(&date, &d.HeadChefID, &d.AssistantID, &d.Archived,
		&d.HeadChef.Name, &d.HeadChef.TelegramID,
		&d.Assistant.Name, &d.Assistant.TelegramID,
	)
	if err != nil {
		return Dinner{}, err
	}
	if d.Date, err = parseDate(date); err != nil {
		return Dinner{}, err
	}
	d.HeadChef.ID = d.HeadChefID
	d.Assistant.ID = d.AssistantID
	return d, nil
}

func (s *Store) queryDinners(ctx context.Context, query string, args ...any) ([]Dinner, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Dinner
	for rows.Next() {
		d, err := scanDinner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LastDinner returns the latest dinner, archived or not. The plan always
// continues after it, so an archived date is never planned twice.
func (s *Store) LastDinner(ctx context.Context) (Dinner, error) {
	d, err := scanDinner(s.db.QueryRowContext(ctx,
		dinnerSelect+` ORDER BY d.date DESC LIMIT 1`))
	return d, notFound(err)
}

// DinnerOn returns the dinner on date, archived or not.
func (s *Store) DinnerOn(ctx context.Context, date time.Time) (Dinner, error) {
	d, err := scanDinner(s.db.QueryRowContext(ctx, dinnerSelect+` WHERE d.date = ?`, dateKey(date)))
	return d, notFound(err)
}

// ListDinners returns active dinners with from <= date <= to, oldest first.
// A zero from or to leaves that side open; limit <= 0 means no limit.
func (s *Store) ListDinners(ctx context.Context, from, to time.Time, limit int) ([]Dinner, error) {
	q := dinnerSelect + ` WHERE d.archived = 0`
	var args []any
	if !from.IsZero() {
		q += ` AND d.date >= ?`
		args = append(args, dateKey(from))
	}
	if !to.IsZero() {
		q += ` AND d.date <= ?`
		args = append(args, dateKey(to))
	}
	q += ` ORDER BY d.date ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryDinners(ctx, q, args...)
}

// HasDinnerAfter reports whether an active dinner exists strictly after date.
func (s *Store) HasDinnerAfter(ctx context.Context, date time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dinners WHERE archived = 0 AND date > ?`, dateKey(date)).Scan(&n)
	return n > 0, err
}

// InsertDinners writes all rows in one transaction. A date that already
// exists fails the whole batch with ErrDuplicate.
func (s *Store) InsertDinners(ctx context.Context, dinners []Dinner) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dinners(date, head_chef_id, assistant_id, created_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowText()
	for _, d := range dinners {
		if _, err := stmt.ExecContext(ctx, dateKey(d.Date), d.HeadChefID, d.AssistantID, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: dinner on %s", ErrDuplicate, dateKey(d.Date))
			}
			return err
		}
	}
	return tx.Commit()
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ArchiveBefore archives every dinner strictly before date.
func (s *Store) ArchiveBefore(ctx context.Context, date time.Time) (int64, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE dinners SET archived = 1 WHERE archived = 0 AND date < ?`, dateKey(date)))
}

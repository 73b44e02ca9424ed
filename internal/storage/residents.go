package storage

import (
	"context"
	"strings"
	"time"
)

const residentColumns = `id, name, birthday, telegram_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResident(r rowScanner) (Resident, error) {
	var (
		res      Resident
		birthday string
	)
	if err := r.Scan(&res.ID, &res.Name, &birthday, &res.TelegramID); err != nil {
		return Resident{}, err
	}
	b, err := parseDate(birthday)
	if err != nil {
		return Resident{}, err
	}
	res.Birthday = b
	return res, nil
}

// ListResidents returns every resident in ID order with Slot set.
func (s *Store) ListResidents(ctx context.Context) ([]Resident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+residentColumns+` FROM residents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, err
		}
		r.Slot = len(out)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResidentByName matches case-insensitively.
func (s *Store) ResidentByName(ctx context.Context, name string) (Resident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+residentColumns+` FROM residents WHERE name = ?`, strings.TrimSpace(name))
	r, err := scanResident(row)
	return r, notFound(err)
}

func (s *Store) ResidentByID(ctx context.Context, id int64) (Resident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+residentColumns+` FROM residents WHERE id = ?`, id)
	r, err := scanResident(row)
	return r, notFound(err)
}

// ResidentByTelegramID resolves a chat user to a resident.
func (s *Store) ResidentByTelegramID(ctx context.Context, telegramID int64) (Resident, error) {
	if telegramID == 0 {
		return Resident{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+residentColumns+` FROM residents WHERE telegram_id = ?`, telegramID)
	r, err := scanResident(row)
	return r, notFound(err)
}

// UpsertResident inserts a resident or updates birthday and Telegram id of
// the one with the same name. Returns the resident's id.
func (s *Store) UpsertResident(ctx context.Context, name string, birthday time.Time, telegramID int64) (int64, error) {
	name = strings.TrimSpace(name)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO residents(name, birthday, telegram_id, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   birthday = excluded.birthday,
		   telegram_id = excluded.telegram_id,
		   updated_at = excluded.updated_at`,
		name, dateKey(birthday), telegramID, nowText(),
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM residents WHERE name = ?`, name).Scan(&id)
	return id, err
}

// LinkTelegram stores the Telegram user id for a resident.
func (s *Store) LinkTelegram(ctx context.Context, residentID, telegramID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE residents SET telegram_id = ?, updated_at = ? WHERE id = ?`,
		telegramID, nowText(), residentID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

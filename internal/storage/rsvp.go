package storage

import (
	"context"
	"fmt"
	"time"
)

// PutRSVP records or replaces a resident's answer for a dinner date.
func (s *Store) PutRSVP(ctx context.Context, date time.Time, residentID int64, answer Answer) error {
	if _, ok := ParseAnswer(string(answer)); !ok {
		return fmt.Errorf("storage: invalid rsvp answer %q", answer)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rsvps(date, resident_id, answer, at) VALUES(?,?,?,?)
		 ON CONFLICT(date, resident_id) DO UPDATE SET answer = excluded.answer, at = excluded.at`,
		dateKey(date), residentID, string(answer), nowText(),
	)
	return err
}

// ListRSVPs returns the answers for a date ordered by resident id.
func (s *Store) ListRSVPs(ctx context.Context, date time.Time) ([]RSVP, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resident_id, answer, at FROM rsvps WHERE date = ? ORDER BY resident_id`, dateKey(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RSVP
	for rows.Next() {
		r := RSVP{Date: date}
		var answer, at string
		if err := rows.Scan(&r.ResidentID, &answer, &at); err != nil {
			return nil, err
		}
		r.Answer = Answer(answer)
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

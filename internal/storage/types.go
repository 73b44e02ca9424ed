package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled  = errors.New("storage: disabled")
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate")
)

// Config selects the backend.
//
// Driver values:
//   - "sqlite" (default): database file at Path
//   - "memory": private in-memory database, used by tests and "preview"
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

type Resident struct {
	ID         int64
	Name       string
	Birthday   time.Time
	TelegramID int64
	// Slot is the resident's position in ID order. Filled by ListResidents.
	Slot int
}

// Person is the part of a resident shown next to a dinner.
type Person struct {
	ID         int64
	Name       string
	TelegramID int64
}

type Dinner struct {
	Date        time.Time
	HeadChefID  int64
	AssistantID int64 // 0: the head chef cooks alone
	Archived    bool

	// Filled on reads.
	HeadChef  Person
	Assistant Person
}

// Solo reports whether the dinner has no assistant.
func (d Dinner) Solo() bool { return d.AssistantID == 0 }

type Answer string

const (
	AnswerYes   Answer = "yes"
	AnswerNo    Answer = "no"
	AnswerMaybe Answer = "maybe"
)

// ParseAnswer accepts yes, no and maybe.
func ParseAnswer(s string) (Answer, bool) {
	switch a := Answer(s); a {
	case AnswerYes, AnswerNo, AnswerMaybe:
		return a, true
	}
	return "", false
}

type RSVP struct {
	Date       time.Time
	ResidentID int64
	Answer     Answer
	At         time.Time
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At            time.Time
	ActorID       int64
	ActorUsername string
	ChatID        int64
	Action        string
	Target        string
	OK            bool
	Error         string
	TookMS        int64
	MetaJSON      string
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Frequency is the recurrence period of a schedule rule.
	Frequency string

	// Kind distinguishes money flowing in from money flowing out.
	Kind string

	// Date is a calendar day. The wall-clock portion is always UTC midnight;
	// the JSON representation is "2006-01-02".
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ScheduleRule is a user-defined recurring transaction template. NextRun is
	// the next calendar day the rule is due; it is recomputed on every edit and
	// advanced by the materializer after each fire.
	ScheduleRule struct {
		ID         string
		OwnerID    string
		Title      string
		Kind       Kind
		Amount     Money
		Category   string
		Currency   string
		Frequency  Frequency
		DayOfMonth int
		Month      int // target month, meaningful only for yearly rules
		NextRun    Date
	}

	// LedgerEntry is one realized transaction in the append-only ledger. Entries
	// created by the materializer carry the rule's fired NextRun as Date, not
	// the wall-clock time of the scan that produced them.
	LedgerEntry struct {
		ID          string
		OwnerID     string
		Kind        Kind
		Category    string
		Amount      Money
		Currency    string
		Date        Date
		Description string
	}
)

var (
	ErrInvalidDay       = errors.New("day of month must be between 1 and 31")
	ErrInvalidMonth     = errors.New("month must be between 1 and 12")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("kind must be income or expense")
	ErrInvalidFrequency = errors.New("frequency must be monthly or yearly")
	ErrInvalidCurrency  = errors.New("currency must be a 3-letter code")
	ErrEmptyTitle       = errors.New("empty title")
	ErrTitleTooLong     = errors.New("title too long (max 200 characters)")
)

// NewDate creates a Date at UTC midnight of the given calendar day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Day returns the day of the month
func (d Date) Day() int { return d.Time.Day() }

// Year returns the year
func (d Date) Year() int { return d.Time.Year() }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (f Frequency) Valid() bool {
	return f == Monthly || f == Yearly
}

// Validate checks all user-settable fields of a rule. NextRun is derived state
// and is never validated here.
func (r ScheduleRule) Validate() error {
	if len(strings.TrimSpace(r.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(r.Title) > 200 {
		return ErrTitleTooLong
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if len(r.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDay
	}
	// Month is ignored for monthly rules, whatever the client sent.
	if r.Frequency == Yearly && (r.Month < 1 || r.Month > 12) {
		return ErrInvalidMonth
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if e.Date.IsZero() {
		return errors.New("entry date cannot be zero")
	}
	return nil
}

package clock

import (
	"fmt"
)

// Seconds in common wall-clock spans.
const (
	Minute = 60
	Hour   = 60 * Minute
	Day    = 24 * Hour
)

// TimeOfDay is a wall-clock time with second resolution, stored as seconds
// since midnight. Valid values are in [0, Day).
type TimeOfDay int

// Midnight is the 00:00:00 sentinel. Event sources write it before the agent's
// clock has synchronized, so it never counts as a real observation.
const Midnight TimeOfDay = 0

// New builds a TimeOfDay from its components.
func New(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range: %d", minute)
	}
	if second < 0 || second > 59 {
		return 0, fmt.Errorf("second out of range: %d", second)
	}
	return TimeOfDay(hour*Hour + minute*Minute + second), nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads a strict 24-hour "HH:MM:SS" value. Each field must be exactly
// two digits.
func Parse(s string) (TimeOfDay, error) {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return 0, fmt.Errorf("invalid time %q: want HH:MM:SS", s)
	}
	h, ok1 := twoDigits(s[0:2])
	m, ok2 := twoDigits(s[3:5])
	sec, ok3 := twoDigits(s[6:8])
	if !ok1 || !ok2 || !ok3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM:SS", s)
	}
	t, err := New(h, m, sec)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int { return int(t) }

// IsSentinel reports whether t is the unsynchronized-clock placeholder.
func (t TimeOfDay) IsSentinel() bool { return t == Midnight }

// Hour, Minute and Second return the wall-clock components.
func (t TimeOfDay) Hour() int   { return int(t) / Hour }
func (t TimeOfDay) Minute() int { return int(t) % Hour / Minute }
func (t TimeOfDay) Second() int { return int(t) % Minute }

// String renders t as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// MarshalText implements encoding.TextMarshaler so JSON carries HH:MM:SS.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Package session decides which market report an unattended run produces and
// renders dates in the target timezone.
package session

import (
	"fmt"
	"strings"
	"time"

	// Zone data is embedded so a host without zoneinfo classifies the same way.
	_ "time/tzdata"

	"github.com/xaenox/insight-bot/internal/models"
)

// DefaultTimezone is the market timezone the reports are written for.
const DefaultTimezone = "Asia/Taipei"

// Classify returns the session for now in loc. An override of "morning" or
// "evening" wins over the clock.
func Classify(now time.Time, loc *time.Location, override string) models.Session {
	if s, ok := ParseOverride(override); ok {
		return s
	}
	if now.In(loc).Hour() < 12 {
		return models.SessionMorning
	}
	return models.SessionEvening
}

// ParseOverride reads a forced session, ignoring case and surrounding space.
func ParseOverride(s string) (models.Session, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(models.SessionMorning):
		return models.SessionMorning, true
	case string(models.SessionEvening):
		return models.SessionEvening, true
	}
	return "", false
}

// LoadLocation resolves a timezone name, falling back to DefaultTimezone when
// name is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// Clock renders user-facing dates in a fixed timezone.
type Clock struct {
	Location *time.Location
}

func NewClock(loc *time.Location) Clock {
	return Clock{Location: loc}
}

// DateLabel renders e.g. "2026年10月19日".
func (c Clock) DateLabel(now time.Time) string {
	t := now.In(c.Location)
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// WeekdayLabel renders e.g. "星期一".
func (c Clock) WeekdayLabel(now time.Time) string {
	return weekdays[now.In(c.Location).Weekday()]
}

// Timestamp renders a 24-hour local timestamp, e.g. "2026/10/19 14:05:09".
func (c Clock) Timestamp(now time.Time) string {
	return now.In(c.Location).Format("2006/1/2 15:04:05")
}

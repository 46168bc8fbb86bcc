package service

import (
	"time"

	"omikuji-bot/internal/model"
)

// Tracker decides daily draw eligibility.
// Day boundaries are evaluated in one configured timezone, never the host's
// local zone, so every deployment agrees on when "today" starts.
type Tracker struct {
	loc *time.Location
	now func() time.Time
}

// NewTracker creates a Tracker for loc. A nil loc means UTC and a nil now
// means time.Now.
func NewTracker(loc *time.Location, now func() time.Time) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{loc: loc, now: now}
}

// Location returns the tracker's timezone.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// TodayKey returns the current date as "YYYY-MM-DD" in the tracker's timezone.
func (t *Tracker) TodayKey() string {
	return t.now().In(t.loc).Format(model.DateLayout)
}

// CanDraw reports whether rec may draw on todayKey. A record that has never
// drawn is always eligible. rec is not modified.
func (t *Tracker) CanDraw(rec *model.UserRecord, todayKey string) bool {
	return !rec.HasDrawnOn(todayKey)
}

// MarkDrawn consumes todayKey for rec. Call it only once the draw has been
// computed.
func (t *Tracker) MarkDrawn(rec *model.UserRecord, todayKey string) {
	rec.LastDrawDate = todayKey
}

// NextReset returns how long until the next day starts in the tracker's timezone.
func (t *Tracker) NextReset() time.Duration {
	now := t.now().In(t.loc)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, t.loc)
	return midnight.Sub(now)
}

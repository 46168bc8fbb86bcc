// Package model defines the data models for the omikuji bot.
package model

// DateLayout is the layout of UserRecord.LastDrawDate.
const DateLayout = "2006-01-02"

// UserRecord holds one user's daily draw state and bonus balance.
// JSON field names match the data files written by earlier versions of the bot.
type UserRecord struct {
	UserID       string `json:"-" db:"user_id"`
	LastDrawDate string `json:"last_omikuji" db:"last_draw_date"` // "" means never drawn
	Balance      int64  `json:"元" db:"balance"`
}

// HasDrawnOn reports whether the record's last draw happened on the given day key.
func (r *UserRecord) HasDrawnOn(day string) bool {
	return r.LastDrawDate != "" && r.LastDrawDate == day
}

// Snapshot is the complete set of user records, keyed by user ID.
// It is the unit of load and save for every store.
type Snapshot map[string]*UserRecord

// Ensure returns the record for userID, creating a default one if absent.
func (s Snapshot) Ensure(userID string) *UserRecord {
	if rec, ok := s[userID]; ok && rec != nil {
		rec.UserID = userID
		return rec
	}
	rec := &UserRecord{UserID: userID}
	s[userID] = rec
	return rec
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, rec := range s {
		if rec == nil {
			continue
		}
		cp := *rec
		cp.UserID = id
		out[id] = &cp
	}
	return out
}

package models

import "time"

// Player is one entry returned by getPlayerDetails.
type Player struct {
	record
}

// NewPlayer builds a player record from decoded fields.
func NewPlayer(fields map[string]any) (Player, error) {
	r, err := newRecord(fields)
	return Player{record: r}, err
}

// MustPlayer is NewPlayer for literals known to be valid.
func MustPlayer(fields map[string]any) Player {
	p, err := NewPlayer(fields)
	if err != nil {
		panic(err)
	}
	return p
}

// CustomID returns customPlayerId, the key used to join player details into
// session players.
func (p Player) CustomID() string {
	return String(p.Fields(), "customPlayerId")
}

// PlayersByDate groups player details by session date key.
type PlayersByDate map[string][]Player

// SessionDateKey is the sessionDate value the API expects for a calendar
// day, e.g. "2024-03-01T00:00:00Z".
func SessionDateKey(day time.Time) string {
	return day.Format(DateLayout) + "T00:00:00Z"
}

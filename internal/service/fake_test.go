package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raphaelgruber/statsports/internal/client"
	"github.com/raphaelgruber/statsports/internal/config"
	"github.com/raphaelgruber/statsports/internal/models"
)

var errUpstream = errors.New("upstream failure")

type call struct {
	start, end  time.Time
	hasDeadline bool
	timeout     time.Duration
}

// fakeSource answers FetchSessions from a script keyed by the requested
// span: "day" for a full-day request, "hour" for an hourly one.
type fakeSource struct {
	mu      sync.Mutex
	calls   []call
	players []string

	// sessions returns the response for a request; n counts prior requests
	// for the same (date, span).
	sessions    func(date string, span string, hour int, n int) ([]models.Session, error)
	playersErr  error
	countsByKey map[string]int
}

func (f *fakeSource) FetchSessions(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countsByKey == nil {
		f.countsByKey = map[string]int{}
	}
	c := call{start: start, end: end}
	_, c.hasDeadline = ctx.Deadline()
	c.timeout, _ = client.AttemptTimeout(ctx)
	f.calls = append(f.calls, c)

	span := "day"
	if end.Sub(start) < 2*time.Hour {
		span = "hour"
	}
	date := start.Format(models.DateLayout)
	key := date + "/" + span
	n := f.countsByKey[key]
	f.countsByKey[key]++
	if f.sessions == nil {
		return []models.Session{}, nil
	}
	return f.sessions(date, span, start.Hour(), n)
}

func (f *fakeSource) FetchPlayerDetails(_ context.Context, sessionDate string) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players = append(f.players, sessionDate)
	if f.playersErr != nil {
		return nil, f.playersErr
	}
	return []models.Player{models.MustPlayer(map[string]any{"customPlayerId": "P-" + sessionDate[:10]})}, nil
}

func (f *fakeSource) count(span string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for k, v := range f.countsByKey {
		if len(k) > 11 && k[11:] == span {
			total += v
		}
	}
	return total
}

func testSession(date string, id string) models.Session {
	return models.MustSession(map[string]any{
		"sessionDetails": map[string]any{"sessionDate": date + "T00:00:00Z", "sessionId": id},
		"sessionPlayers": []any{},
	})
}

func testSessions(date string, n int, prefix string) []models.Session {
	out := make([]models.Session, n)
	for i := range out {
		out[i] = testSession(date, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		RequestTimeout: time.Minute,
		ProbeTimeout:   10 * time.Second,
		HourPause:      200 * time.Millisecond,
		DayPause:       500 * time.Millisecond,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

package service

import "github.com/raphaelgruber/statsports/internal/models"

// DedupeSessions keeps the first session per signature, preserving order.
// It returns the unique sessions and the number removed.
func DedupeSessions(sessions []models.Session) ([]models.Session, int) {
	seen := make(map[string]struct{}, len(sessions))
	unique := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		sig := s.Signature()
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		unique = append(unique, s)
	}
	return unique, len(sessions) - len(unique)
}

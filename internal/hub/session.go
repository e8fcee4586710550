package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/noteboard/noteboard/internal/domain"
)

// session is one connected participant: its live channel plus its resolved
// identity. Owned exclusively by the hub goroutine.
type session struct {
	id       uuid.UUID
	identity *domain.Identity // nil until the auth frame arrives
	lastSeen time.Time
	writer   *sessionWriter
}

func (s *session) authenticated() bool {
	return s.identity != nil
}

// displayName is what broadcast frames attribute actions to.
func (s *session) displayName() string {
	if s.identity == nil {
		return "Unknown"
	}
	return s.identity.Name
}

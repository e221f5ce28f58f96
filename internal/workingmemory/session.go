package workingmemory

import "sync"

// Location identifies one of a session's two replaceable working-set
// slots.
type Location string

const (
	Core    Location = "core"
	Context Location = "context"
)

const maxRecentSummaries = 5

// SessionState is one session's working set: two replaceable slots,
// the rolling conversation context, and the bookkeeping the reflection
// trigger needs.
type SessionState struct {
	mu sync.Mutex

	TenantID  string
	SessionID string

	CoreMemory string

	ConversationContext   string
	RecentSummaries       []string
	AccumulatedImportance float64
	UpdateCount           int
	MaxTokens             int
}

func newSessionState(tenantID, sessionID string, maxTokens int) *SessionState {
	return &SessionState{
		TenantID:  tenantID,
		SessionID: sessionID,
		MaxTokens: maxTokens,
	}
}

func (s *SessionState) pushSummary(summary string) {
	s.RecentSummaries = append(s.RecentSummaries, summary)
	if len(s.RecentSummaries) > maxRecentSummaries {
		s.RecentSummaries = s.RecentSummaries[len(s.RecentSummaries)-maxRecentSummaries:]
	}
}

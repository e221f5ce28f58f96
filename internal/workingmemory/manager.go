package workingmemory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/summarizer"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("workingmemory")

const (
	reflectionImportanceThreshold = 10.0
	reflectionTokenRatio          = 0.85
	reflectionMinMemoryCount      = 5
	truncationTokenRatio          = 0.9
)

// UpdateResult reports what Update did to a session's state.
type UpdateResult struct {
	TokenCount           int
	AccumulatedImportance float64
	ReflectionRecommended bool
	Truncated             bool
	ArchivedMemoryID      string
}

// ManageResult reports the cascade of actions Manage took.
type ManageResult struct {
	Reflected    bool
	Truncated    bool
	TokensFreed  int
	FinalTokens  int
}

// Manager owns every session's working-memory state and archives
// overflow into a memory index.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*SessionState
	index      memindex.Index
	summarizer *summarizer.Summarizer
	defaultMax int
}

func sessionKey(tenantID, sessionID string) string { return tenantID + "|" + sessionID }

// New builds a Manager. defaultMaxTokens seeds new sessions' token cap
// until Manage overrides it.
func New(index memindex.Index, summ *summarizer.Summarizer, defaultMaxTokens int) *Manager {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 128000
	}
	return &Manager{
		sessions:   make(map[string]*SessionState),
		index:      index,
		summarizer: summ,
		defaultMax: defaultMaxTokens,
	}
}

func (m *Manager) session(tenantID, sessionID string) *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(tenantID, sessionID)
	s, ok := m.sessions[key]
	if !ok {
		s = newSessionState(tenantID, sessionID, m.defaultMax)
		m.sessions[key] = s
	}
	return s
}

// Replace swaps the contents of location and returns what was there
// before.
func (m *Manager) Replace(tenantID, sessionID string, location Location, text string) (string, error) {
	s := m.session(tenantID, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch location {
	case Core:
		previous := s.CoreMemory
		s.CoreMemory = text
		return previous, nil
	case Context:
		previous := s.ConversationContext
		s.ConversationContext = text
		return previous, nil
	default:
		return "", fmt.Errorf("workingmemory: unknown location %q", location)
	}
}

// Update appends text to the session's conversation context, accrues
// importance toward the reflection trigger, and archives a truncated
// prefix if the context has grown past its token cap.
func (m *Manager) Update(ctx context.Context, tenantID, sessionID, text string) (UpdateResult, error) {
	s := m.session(tenantID, sessionID)
	s.mu.Lock()

	if s.ConversationContext == "" {
		s.ConversationContext = text
	} else {
		s.ConversationContext = s.ConversationContext + "\n\n" + text
	}
	s.AccumulatedImportance += EstimateImportance(text)
	s.UpdateCount++

	tokenCount := EstimateTokens(s.ConversationContext)
	result := UpdateResult{TokenCount: tokenCount, AccumulatedImportance: s.AccumulatedImportance}

	var truncatedPrefix string
	if float64(tokenCount) > truncationTokenRatio*float64(s.MaxTokens) {
		prefix, remainder := splitTruncationPoint(s.ConversationContext)
		if prefix != "" {
			truncatedPrefix = prefix
			s.ConversationContext = remainder
			result.Truncated = true
			result.TokenCount = EstimateTokens(s.ConversationContext)
		}
	}

	result.ReflectionRecommended = shouldReflectLocked(s)
	s.mu.Unlock()

	if truncatedPrefix != "" {
		id, err := m.archive(ctx, tenantID, sessionID, truncatedPrefix, "truncation")
		if err != nil {
			log.Error("failed to archive truncated context", "error", err, "session_id", sessionID)
			return result, err
		}
		result.ArchivedMemoryID = id
	}

	return result, nil
}

// splitTruncationPoint removes a prefix from the first half of text,
// ending at a paragraph boundary if one exists there, otherwise at a
// sentence boundary.
func splitTruncationPoint(text string) (prefix, remainder string) {
	half := len(text) / 2
	if half == 0 {
		return "", text
	}

	if idx := strings.LastIndex(text[:half], "\n\n"); idx > 0 {
		return text[:idx], strings.TrimLeft(text[idx+2:], "\n")
	}

	runes := []rune(text[:half])
	for i := len(runes) - 1; i >= 0; i-- {
		if r := runes[i]; r == '.' || r == '!' || r == '?' {
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				cut := len(string(runes[:i+1]))
				return text[:cut], strings.TrimLeft(text[cut:], " \n")
			}
		}
	}
	return "", text
}

func (m *Manager) archive(ctx context.Context, tenantID, sessionID, content, source string) (string, error) {
	mem := &types.MemoryUnit{
		TenantID:   tenantID,
		SessionID:  sessionID,
		Content:    content,
		Type:       types.TypeSemantic,
		Importance: 0.7,
		Metadata:   map[string]string{"source": source, "session_id": sessionID},
	}
	if err := m.index.Store(ctx, mem); err != nil {
		return "", err
	}
	return mem.ID, nil
}

// ShouldReflect reports whether the session currently meets the
// reflection trigger.
func (m *Manager) ShouldReflect(tenantID, sessionID string) bool {
	s := m.session(tenantID, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return shouldReflectLocked(s)
}

func shouldReflectLocked(s *SessionState) bool {
	if s.AccumulatedImportance >= reflectionImportanceThreshold {
		return true
	}
	tokenCount := EstimateTokens(s.ConversationContext)
	return float64(tokenCount) >= reflectionTokenRatio*float64(s.MaxTokens) && s.UpdateCount >= reflectionMinMemoryCount
}

// Reflect summarizes the session's conversation context, archives the
// original, resets the context to its last two recent summaries, and
// zeros the reflection accumulator. It returns the number of tokens
// freed.
func (m *Manager) Reflect(ctx context.Context, tenantID, sessionID string) (int, error) {
	s := m.session(tenantID, sessionID)
	s.mu.Lock()
	original := s.ConversationContext
	s.mu.Unlock()

	if strings.TrimSpace(original) == "" {
		return 0, nil
	}

	beforeTokens := EstimateTokens(original)

	summary, err := m.summarizer.Summarize(ctx, []*types.MemoryUnit{{
		TenantID: tenantID, SessionID: sessionID, Content: original, Type: types.TypeEpisodic, Importance: 0.5,
	}}, summarizer.Options{})
	if err != nil {
		return 0, err
	}

	if _, err := m.archive(ctx, tenantID, sessionID, original, "reflection"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	tail := s.RecentSummaries
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	s.ConversationContext = strings.Join(tail, "\n\n")
	s.pushSummary(summary.Content)
	s.AccumulatedImportance = 0
	s.UpdateCount = 0
	afterTokens := EstimateTokens(s.ConversationContext)
	s.mu.Unlock()

	return beforeTokens - afterTokens, nil
}

// Manage applies maxTokens as the session's new cap and runs whatever
// cascade of reflect/truncate is needed to bring it back under budget.
func (m *Manager) Manage(ctx context.Context, tenantID, sessionID string, maxTokens int) (ManageResult, error) {
	s := m.session(tenantID, sessionID)
	s.mu.Lock()
	if maxTokens > 0 {
		s.MaxTokens = maxTokens
	}
	tokenCap := s.MaxTokens
	current := EstimateTokens(s.ConversationContext)
	s.mu.Unlock()

	var result ManageResult

	if float64(current) > reflectionTokenRatio*float64(tokenCap) {
		freed, err := m.Reflect(ctx, tenantID, sessionID)
		if err != nil {
			return result, err
		}
		result.Reflected = true
		result.TokensFreed += freed
	}

	s.mu.Lock()
	current = EstimateTokens(s.ConversationContext)
	s.mu.Unlock()

	if float64(current) > truncationTokenRatio*float64(tokenCap) {
		s.mu.Lock()
		prefix, remainder := splitTruncationPoint(s.ConversationContext)
		if prefix != "" {
			s.ConversationContext = remainder
		}
		s.mu.Unlock()

		if prefix != "" {
			if _, err := m.archive(ctx, tenantID, sessionID, prefix, "truncation"); err != nil {
				return result, err
			}
			result.Truncated = true
		}
	}

	s.mu.Lock()
	result.FinalTokens = EstimateTokens(s.ConversationContext)
	s.mu.Unlock()

	return result, nil
}

package locomo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("locomo")

const (
	// DatasetURL is the upstream location of the LoCoMo-10 dataset.
	DatasetURL = "https://raw.githubusercontent.com/snap-research/locomo/main/data/locomo10.json"

	sessionPrefix = "locomo-"
	benchmarkTag  = "locomo"
)

// Ingester loads LoCoMo conversations into a mnemo.Service as memories,
// one session per conversation, and tracks which memory a dialogue turn
// became so evidence-based scoring can check whether retrieval found the
// right source turns.
type Ingester struct {
	svc      *mnemo.Service
	tenantID string

	dialogueToMemory map[string]string // "convID:diaID" -> memory ID
}

// NewIngester builds an Ingester that stores into svc under tenantID.
func NewIngester(svc *mnemo.Service, tenantID string) *Ingester {
	return &Ingester{svc: svc, tenantID: tenantID, dialogueToMemory: make(map[string]string)}
}

// SessionID returns the session a conversation's turns are stored under.
func (i *Ingester) SessionID(convID string) string {
	return sessionPrefix + convID
}

// LoadDataset loads the LoCoMo dataset from a local file, a URL, or (path
// == "" or "auto") the upstream GitHub copy.
func LoadDataset(path string) (*Dataset, error) {
	var data []byte
	var err error

	switch {
	case path == "" || path == "auto":
		log.Info("downloading LoCoMo dataset", "url", DatasetURL)
		data, err = downloadDataset(DatasetURL)
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		log.Info("downloading LoCoMo dataset", "url", path)
		data, err = downloadDataset(path)
	default:
		log.Info("loading LoCoMo dataset from file", "path", path)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	// The upstream file is a bare array of conversations, not a
	// {"conversations": [...]} envelope.
	var conversations []Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		var dataset Dataset
		if err2 := json.Unmarshal(data, &dataset); err2 == nil {
			log.Info("loaded LoCoMo dataset", "conversations", len(dataset.Conversations))
			return &dataset, nil
		}
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	dataset := &Dataset{Conversations: conversations}
	log.Info("loaded LoCoMo dataset", "conversations", len(dataset.Conversations))
	return dataset, nil
}

func downloadDataset(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Ingest stores every conversation in dataset.
func (i *Ingester) Ingest(ctx context.Context, dataset *Dataset) (*IngestionResult, error) {
	start := time.Now()
	result := &IngestionResult{}

	for _, conv := range dataset.Conversations {
		convResult, err := i.IngestConversation(ctx, &conv)
		if err != nil {
			log.Error("failed to ingest conversation", "id", conv.ID, "error", err)
			continue
		}
		result.ConversationsIngested++
		result.TotalTurns += convResult.TotalTurns
		result.TotalMemories += convResult.TotalMemories
		result.PersonaMemories += convResult.PersonaMemories
		result.TotalQAQuestions += len(conv.QA)
	}

	result.Duration = time.Since(start)
	log.Info("ingestion complete",
		"conversations", result.ConversationsIngested,
		"memories", result.TotalMemories,
		"qa_questions", result.TotalQAQuestions,
		"duration", result.Duration)
	return result, nil
}

// IngestConversation stores one conversation's personas and dialogue
// turns as memories under a session scoped to the conversation ID.
func (i *Ingester) IngestConversation(ctx context.Context, conv *Conversation) (*IngestionResult, error) {
	result := &IngestionResult{}
	sessionID := i.SessionID(conv.ID)

	for speaker, traits := range conv.Personas {
		for _, trait := range traits {
			in := mnemo.StoreInput{
				TenantID:   i.tenantID,
				Content:    fmt.Sprintf("[Persona - %s] %s", speaker, trait),
				Type:       types.TypeSemantic,
				Importance: 1.0, // maximum: personas anchor every later turn's context
				Tags:       []string{benchmarkTag, "persona", "conv_" + conv.ID, speaker},
				SessionID:  sessionID,
			}
			if _, err := i.svc.Store(ctx, in); err != nil {
				return nil, fmt.Errorf("store persona: %w", err)
			}
			result.PersonaMemories++
			result.TotalMemories++
		}
	}

	sessionKeys := make([]string, 0, len(conv.Sessions))
	for k := range conv.Sessions {
		sessionKeys = append(sessionKeys, k)
	}
	sort.Strings(sessionKeys)

	for _, sessionKey := range sessionKeys {
		sessionNum := extractSessionNumber(sessionKey)

		for _, turn := range conv.Sessions[sessionKey] {
			result.TotalTurns++

			in := mnemo.StoreInput{
				TenantID:   i.tenantID,
				Content:    formatTurnContent(turn),
				Type:       types.TypeEpisodic,
				Importance: calculateTurnImportance(turn),
				Tags:       buildTurnTags(conv.ID, sessionNum, turn),
				SessionID:  sessionID,
			}
			res, err := i.svc.Store(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("store turn %s: %w", turn.DiaID, err)
			}

			i.dialogueToMemory[conv.ID+":"+turn.DiaID] = res.ID
			result.TotalMemories++
		}
	}

	return result, nil
}

// GetMemoryForDialogue returns the memory ID a dialogue turn was stored
// as, if it has been ingested.
func (i *Ingester) GetMemoryForDialogue(convID, diaID string) (string, bool) {
	id, ok := i.dialogueToMemory[convID+":"+diaID]
	return id, ok
}

// GetConversationMemories returns every memory stored for a conversation.
func (i *Ingester) GetConversationMemories(ctx context.Context, convID string) ([]*types.MemoryUnit, error) {
	res, err := i.svc.GetAll(ctx, i.tenantID, memindex.Filter{SessionID: i.SessionID(convID)}, 10000)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// ClearBenchmarkData permanently deletes every memory this ingester (or
// a prior run against the same tenant) stored.
func (i *Ingester) ClearBenchmarkData(ctx context.Context) error {
	res, err := i.svc.GetAll(ctx, i.tenantID, memindex.Filter{Topics: []string{benchmarkTag}}, 100000)
	if err != nil {
		return fmt.Errorf("list benchmark memories: %w", err)
	}
	for _, m := range res.Items {
		if err := i.svc.Delete(ctx, i.tenantID, m.ID, true); err != nil {
			log.Warn("failed to delete benchmark memory", "id", m.ID, "error", err)
		}
	}
	i.dialogueToMemory = make(map[string]string)
	log.Info("benchmark data cleared", "deleted", len(res.Items))
	return nil
}

func extractSessionNumber(sessionKey string) int {
	parts := strings.Split(sessionKey, "_")
	if len(parts) >= 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			return n
		}
	}
	return 0
}

func formatTurnContent(turn Turn) string {
	content := fmt.Sprintf("[%s] %s", turn.Speaker, turn.Content)
	if turn.ImageURL != "" {
		content += fmt.Sprintf(" [shared image: %s]", turn.ImageCaption)
	}
	return content
}

// calculateTurnImportance scores a turn 0-1: longer turns and turns with
// images carry more signal than a short aside.
func calculateTurnImportance(turn Turn) float64 {
	// Counted in tenths so the result is exactly 0.4, 0.6, 0.8 or 0.9.
	tenths := 4
	words := len(strings.Fields(turn.Content))
	if words > 50 {
		tenths += 2
	}
	if words > 100 {
		tenths += 2
	}
	if turn.ImageURL != "" {
		tenths += 2
	}
	if tenths > 9 {
		tenths = 9 // reserve 1.0 for personas
	}
	return float64(tenths) / 10
}

func buildTurnTags(convID string, sessionNum int, turn Turn) []string {
	tags := []string{benchmarkTag, "conv_" + convID, fmt.Sprintf("session_%d", sessionNum), turn.Speaker, turn.DiaID}
	if turn.ImageURL != "" {
		tags = append(tags, "has_image")
	}
	return tags
}

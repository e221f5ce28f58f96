package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnemotree/mnemocore/internal/graph"
	"github.com/mnemotree/mnemocore/internal/injection"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/pii"
	"github.com/mnemotree/mnemocore/internal/retrieval"
	"github.com/mnemotree/mnemocore/internal/types"
)

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "store",
			Description: "Store a new memory for a tenant",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id":  {Type: "string", Description: "Tenant identifier"},
					"content":    {Type: "string", Description: "Memory content to store"},
					"type":       {Type: "string", Description: "Memory type", Enum: []string{"episodic", "semantic", "procedural", "fact"}},
					"importance": {Type: "number", Description: "Importance 0-1", Minimum: float64Ptr(0), Maximum: float64Ptr(1)},
					"tags":       {Type: "array", Description: "Topic tags", Items: &Property{Type: "string"}},
					"session_id": {Type: "string", Description: "Session identifier"},
				},
				Required: []string{"tenant_id", "content"},
			},
		},
		{
			Name:        "recall",
			Description: "Retrieve memories relevant to a query using hybrid dense/sparse search",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id": {Type: "string", Description: "Tenant identifier"},
					"query":     {Type: "string", Description: "Query text"},
					"limit":     {Type: "integer", Description: "Max results", Default: 10},
				},
				Required: []string{"tenant_id", "query"},
			},
		},
		{
			Name:        "get",
			Description: "Fetch one memory by ID",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"tenant_id": {Type: "string"}, "id": {Type: "string"}},
				Required:   []string{"tenant_id", "id"},
			},
		},
		{
			Name:        "get_all",
			Description: "List a tenant's memories, optionally filtered",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id":  {Type: "string"},
					"session_id": {Type: "string"},
					"type":       {Type: "string"},
					"limit":      {Type: "integer", Default: 50},
				},
				Required: []string{"tenant_id"},
			},
		},
		{
			Name:        "update",
			Description: "Update a memory's content and/or importance",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id":  {Type: "string"},
					"id":         {Type: "string"},
					"content":    {Type: "string"},
					"importance": {Type: "number"},
				},
				Required: []string{"tenant_id", "id"},
			},
		},
		{
			Name:        "delete",
			Description: "Delete a memory (soft by default)",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id": {Type: "string"},
					"id":        {Type: "string"},
					"permanent": {Type: "boolean", Default: false},
				},
				Required: []string{"tenant_id", "id"},
			},
		},
		{
			Name:        "detect_pii",
			Description: "Detect personally identifiable information in text",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"text": {Type: "string"}},
				Required:   []string{"text"},
			},
		},
		{
			Name:        "redact_pii",
			Description: "Detect and redact personally identifiable information in text",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string"},
					"mode": {Type: "string", Enum: []string{"replace", "full_mask", "partial_mask", "hash", "remove"}},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "detect_injection",
			Description: "Assess text for prompt-injection risk",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"text": {Type: "string"}},
				Required:   []string{"text"},
			},
		},
		{
			Name:        "sanitize_input",
			Description: "Neutralize detected prompt-injection attempts in text",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string"},
					"mode": {Type: "string", Enum: []string{"neutralize", "remove", "block", "escape"}},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "validate_content",
			Description: "Run both the PII and injection detectors over text before storing it",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"text": {Type: "string"}},
				Required:   []string{"text"},
			},
		},
		{
			Name:        "extract_entities",
			Description: "Extract named entities from text",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"text": {Type: "string"}},
				Required:   []string{"text"},
			},
		},
		{
			Name:        "build_graph",
			Description: "Extract relations across a tenant's memories and merge them into its knowledge graph",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"tenant_id": {Type: "string"}},
				Required:   []string{"tenant_id"},
			},
		},
		{
			Name:        "query_graph",
			Description: "Traverse a tenant's knowledge graph from a root memory",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"tenant_id":    {Type: "string"},
					"root_id":      {Type: "string"},
					"depth":        {Type: "integer", Default: 2},
					"min_strength": {Type: "number", Default: 0},
				},
				Required: []string{"tenant_id", "root_id"},
			},
		},
		{
			Name:        "graph_stats",
			Description: "Report node/edge counts for a tenant's knowledge graph",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"tenant_id": {Type: "string"}},
				Required:   []string{"tenant_id"},
			},
		},
		{
			Name:        "clear_graph",
			Description: "Discard a tenant's entire knowledge graph",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"tenant_id": {Type: "string"}},
				Required:   []string{"tenant_id"},
			},
		},
	}
}

func (s *Server) callTool(ctx context.Context, name string, argsJSON json.RawMessage) (string, error) {
	switch name {
	case "store":
		return s.toolStore(ctx, argsJSON)
	case "recall":
		return s.toolRecall(ctx, argsJSON)
	case "get":
		return s.toolGet(ctx, argsJSON)
	case "get_all":
		return s.toolGetAll(ctx, argsJSON)
	case "update":
		return s.toolUpdate(ctx, argsJSON)
	case "delete":
		return s.toolDelete(ctx, argsJSON)
	case "detect_pii":
		return s.toolDetectPII(argsJSON)
	case "redact_pii":
		return s.toolRedactPII(argsJSON)
	case "detect_injection":
		return s.toolDetectInjection(argsJSON)
	case "sanitize_input":
		return s.toolSanitizeInput(argsJSON)
	case "validate_content":
		return s.toolValidateContent(argsJSON)
	case "extract_entities":
		return s.toolExtractEntities(argsJSON)
	case "build_graph":
		return s.toolBuildGraph(ctx, argsJSON)
	case "query_graph":
		return s.toolQueryGraph(argsJSON)
	case "graph_stats":
		return s.toolGraphStats(argsJSON)
	case "clear_graph":
		return s.toolClearGraph(argsJSON)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (s *Server) toolStore(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID   string   `json:"tenant_id"`
		Content    string   `json:"content"`
		Type       string   `json:"type"`
		Importance float64  `json:"importance"`
		Tags       []string `json:"tags"`
		SessionID  string   `json:"session_id"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	res, err := s.svc.Store(ctx, mnemo.StoreInput{
		TenantID:   p.TenantID,
		Content:    p.Content,
		Type:       types.MemoryType(p.Type),
		Importance: p.Importance,
		Tags:       p.Tags,
		SessionID:  p.SessionID,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("stored memory %s (action=%s)", res.ID, res.Action), nil
}

func (s *Server) toolRecall(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID string `json:"tenant_id"`
		Query    string `json:"query"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	results, err := s.svc.Recall(ctx, p.TenantID, p.Query, retrieval.Options{Limit: p.Limit})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "no matching memories", nil
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] (score=%.3f) %s\n", r.Memory.ID, r.Final, r.Memory.Content)
	}
	return b.String(), nil
}

func (s *Server) toolGet(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID string `json:"tenant_id"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	m, err := s.svc.Get(ctx, p.TenantID, p.ID)
	if err != nil {
		return "", err
	}
	data, _ := json.MarshalIndent(m, "", "  ")
	return string(data), nil
}

func (s *Server) toolGetAll(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID  string `json:"tenant_id"`
		SessionID string `json:"session_id"`
		Type      string `json:"type"`
		Limit     int    `json:"limit"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	filter := memindex.Filter{SessionID: p.SessionID, Type: types.MemoryType(p.Type)}
	res, err := s.svc.GetAll(ctx, p.TenantID, filter, p.Limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("total=%d returned=%d", res.Total, res.Returned), nil
}

func (s *Server) toolUpdate(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID   string  `json:"tenant_id"`
		ID         string  `json:"id"`
		Content    string  `json:"content"`
		Importance float64 `json:"importance"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	if err := s.svc.Update(ctx, mnemo.UpdateInput{TenantID: p.TenantID, ID: p.ID, Content: p.Content, Importance: p.Importance}); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *Server) toolDelete(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID  string `json:"tenant_id"`
		ID        string `json:"id"`
		Permanent bool   `json:"permanent"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	if err := s.svc.Delete(ctx, p.TenantID, p.ID, p.Permanent); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *Server) toolDetectPII(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	matches := s.svc.DetectPII(p.Text)
	if len(matches) == 0 {
		return "no PII detected", nil
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s at [%d,%d)\n", m.Type, m.Start, m.End)
	}
	return b.String(), nil
}

func (s *Server) toolRedactPII(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	redacted, entries := s.svc.RedactPII(p.Text, pii.RedactionOptions{Mode: pii.RedactionMode(p.Mode)})
	return fmt.Sprintf("%s\n(%d redaction(s))", redacted, len(entries)), nil
}

func (s *Server) toolDetectInjection(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	a := s.svc.DetectInjection(p.Text)
	return fmt.Sprintf("level=%s risk=%.2f matches=%d", a.Level, a.Risk, len(a.Matches)), nil
}

func (s *Server) toolSanitizeInput(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	result := s.svc.SanitizeInput(p.Text, injection.SanitizeOptions{Mode: injection.SanitizeMode(p.Mode)})
	if result.WasBlocked {
		return "blocked: input exceeded the configured injection risk threshold", nil
	}
	return result.Text, nil
}

func (s *Server) toolValidateContent(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	res := s.svc.ValidateContent(p.Text)
	return fmt.Sprintf("safe=%v pii_matches=%d injection_level=%s", res.Safe, len(res.PII), res.Injection.Level), nil
}

func (s *Server) toolExtractEntities(argsJSON json.RawMessage) (string, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	entities := s.svc.ExtractEntities(p.Text)
	if len(entities) == 0 {
		return "no entities found", nil
	}
	return strings.Join(entities, ", "), nil
}

func (s *Server) toolBuildGraph(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	stats, err := s.svc.BuildGraph(ctx, p.TenantID, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nodes=%d edges=%d", stats.NodeCount, stats.EdgeCount), nil
}

func (s *Server) toolQueryGraph(argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID    string  `json:"tenant_id"`
		RootID      string  `json:"root_id"`
		Depth       int     `json:"depth"`
		MinStrength float64 `json:"min_strength"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	res, err := s.svc.QueryGraph(p.TenantID, graph.QueryOptions{RootID: p.RootID, Depth: p.Depth, MinStrength: p.MinStrength})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nodes=%v edges=%d", res.Nodes, len(res.Edges)), nil
}

func (s *Server) toolGraphStats(argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	stats := s.svc.GraphStats(p.TenantID)
	return fmt.Sprintf("nodes=%d edges=%d", stats.NodeCount, stats.EdgeCount), nil
}

func (s *Server) toolClearGraph(argsJSON json.RawMessage) (string, error) {
	var p struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return "", err
	}
	s.svc.ClearGraph(p.TenantID)
	return "ok", nil
}

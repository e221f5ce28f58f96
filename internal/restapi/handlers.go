package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mnemotree/mnemocore/internal/graph"
	"github.com/mnemotree/mnemocore/internal/injection"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/pii"
	"github.com/mnemotree/mnemocore/internal/retrieval"
	"github.com/mnemotree/mnemocore/internal/types"
)

func tenantFrom(c *gin.Context) string {
	if t := c.Query("tenant_id"); t != "" {
		return t
	}
	return c.GetHeader("X-Tenant-ID")
}

// handleStore handles POST /api/v1/memories.
func (s *Server) handleStore(c *gin.Context) {
	var body struct {
		TenantID   string   `json:"tenant_id"`
		Content    string   `json:"content"`
		Type       string   `json:"type"`
		Importance float64  `json:"importance"`
		Tags       []string `json:"tags"`
		SessionID  string   `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	res, err := s.svc.Store(c.Request.Context(), mnemo.StoreInput{
		TenantID:   body.TenantID,
		Content:    body.Content,
		Type:       types.MemoryType(body.Type),
		Importance: body.Importance,
		Tags:       body.Tags,
		SessionID:  body.SessionID,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	CreatedResponse(c, "memory stored", res)
}

// handleRecall handles GET /api/v1/memories/search.
func (s *Server) handleRecall(c *gin.Context) {
	tenantID := tenantFrom(c)
	query := c.Query("query")
	limit, _ := strconv.Atoi(c.Query("limit"))

	results, err := s.svc.Recall(c.Request.Context(), tenantID, query, retrieval.Options{Limit: limit})
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "recall complete", results)
}

// handleGet handles GET /api/v1/memories/:id.
func (s *Server) handleGet(c *gin.Context) {
	tenantID := tenantFrom(c)
	id := c.Param("id")

	m, err := s.svc.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "memory found", m)
}

// handleGetAll handles GET /api/v1/memories.
func (s *Server) handleGetAll(c *gin.Context) {
	tenantID := tenantFrom(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := memindex.Filter{
		SessionID: c.Query("session_id"),
		Type:      types.MemoryType(c.Query("type")),
	}

	res, err := s.svc.GetAll(c.Request.Context(), tenantID, filter, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "ok", res)
}

// handleUpdate handles PUT /api/v1/memories/:id.
func (s *Server) handleUpdate(c *gin.Context) {
	var body struct {
		TenantID   string  `json:"tenant_id"`
		Content    string  `json:"content"`
		Importance float64 `json:"importance"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	in := mnemo.UpdateInput{
		TenantID:   body.TenantID,
		ID:         c.Param("id"),
		Content:    body.Content,
		Importance: body.Importance,
	}
	if in.TenantID == "" {
		in.TenantID = tenantFrom(c)
	}
	if err := s.svc.Update(c.Request.Context(), in); err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "memory updated", nil)
}

// handleDelete handles DELETE /api/v1/memories/:id.
func (s *Server) handleDelete(c *gin.Context) {
	tenantID := tenantFrom(c)
	id := c.Param("id")
	permanent := c.Query("permanent") == "true"

	if err := s.svc.Delete(c.Request.Context(), tenantID, id, permanent); err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "memory deleted", nil)
}

// --- Security endpoints ---

func (s *Server) handleDetectPII(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	SuccessResponse(c, "ok", s.svc.DetectPII(body.Text))
}

func (s *Server) handleRedactPII(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	redacted, entries := s.svc.RedactPII(body.Text, pii.RedactionOptions{Mode: pii.RedactionMode(body.Mode)})
	SuccessResponse(c, "ok", gin.H{"text": redacted, "redactions": entries})
}

func (s *Server) handleDetectInjection(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	SuccessResponse(c, "ok", s.svc.DetectInjection(body.Text))
}

func (s *Server) handleSanitizeInput(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	SuccessResponse(c, "ok", s.svc.SanitizeInput(body.Text, injection.SanitizeOptions{Mode: injection.SanitizeMode(body.Mode)}))
}

func (s *Server) handleValidateContent(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	SuccessResponse(c, "ok", s.svc.ValidateContent(body.Text))
}

// --- Knowledge-graph endpoints ---

func (s *Server) handleExtractEntities(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	SuccessResponse(c, "ok", s.svc.ExtractEntities(body.Text))
}

func (s *Server) handleBuildGraph(c *gin.Context) {
	tenantID := tenantFrom(c)
	stats, err := s.svc.BuildGraph(c.Request.Context(), tenantID, nil)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "graph built", stats)
}

func (s *Server) handleQueryGraph(c *gin.Context) {
	tenantID := tenantFrom(c)
	depth, _ := strconv.Atoi(c.Query("depth"))
	minStrength, _ := strconv.ParseFloat(c.Query("min_strength"), 64)

	res, err := s.svc.QueryGraph(tenantID, graph.QueryOptions{
		RootID:      c.Query("root_id"),
		Depth:       depth,
		MinStrength: minStrength,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "ok", res)
}

func (s *Server) handleGraphStats(c *gin.Context) {
	tenantID := tenantFrom(c)
	SuccessResponse(c, "ok", s.svc.GraphStats(tenantID))
}

func (s *Server) handleClearGraph(c *gin.Context) {
	tenantID := tenantFrom(c)
	s.svc.ClearGraph(tenantID)
	SuccessResponse(c, "graph cleared", nil)
}

// handleHealth reports liveness without touching the service, so it
// stays reachable even if downstream components are degraded.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListSessions returns the empty slice rather than an error when
// the backend doesn't persist sessions, so a client running against
// the in-memory backend sees "no sessions" instead of a 500.
func (s *Server) handleListSessions(c *gin.Context) {
	tenantID := tenantFrom(c)
	sessions, err := s.svc.ListSessions(c.Request.Context(), tenantID)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessResponse(c, "ok", sessions)
}

package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/testutil"
	"github.com/mnemotree/mnemocore/pkg/config"
)

type fakeProvider struct{ dim int }

func (f fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return testutil.DeterministicEmbed(text, f.dim), nil
}
func (f fakeProvider) Dimensions() int { return f.dim }

func newTestServer(t *testing.T, input string) (*Server, *bytes.Buffer) {
	t.Helper()
	gw := embedding.WrapProvider(fakeProvider{dim: 32}, time.Minute, 1)
	svc, err := mnemo.New(config.DefaultConfig(), gw)
	if err != nil {
		t.Fatalf("mnemo.New: %v", err)
	}
	s := NewServer(svc)
	s.stdin = strings.NewReader(input)
	var out bytes.Buffer
	s.stdout = &out
	return s, &out
}

func readResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	var responses []Response
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v (line: %s)", err, scanner.Text())
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestRun_InitializeAndToolsList(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	responses := readResponses(t, out)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error != nil {
		t.Errorf("unexpected error on initialize: %+v", responses[0].Error)
	}
	if responses[1].Error != nil {
		t.Errorf("unexpected error on tools/list: %+v", responses[1].Error)
	}
}

func TestRun_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"nonsense"}` + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	responses := readResponses(t, out)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != MethodNotFound {
		t.Errorf("expected MethodNotFound, got %+v", responses[0].Error)
	}
}

func TestRun_StoreAndRecallToolRoundTrip(t *testing.T) {
	storeReq := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"store","arguments":{"tenant_id":"t1","content":"remember the onboarding checklist"}}}`
	recallReq := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"recall","arguments":{"tenant_id":"t1","query":"onboarding checklist"}}}`
	input := storeReq + "\n" + recallReq + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	responses := readResponses(t, out)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	for i, r := range responses {
		if r.Error != nil {
			t.Fatalf("response %d had top-level error: %+v", i, r.Error)
		}
	}
}

func TestRun_ToolCallWithMissingToolReturnsIsError(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}` + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	responses := readResponses(t, out)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}

	resultJSON, err := json.Marshal(responses[0].Result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}
	var result CallToolResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		t.Fatalf("failed to unmarshal CallToolResult: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError=true for an unknown tool")
	}
}

func TestRun_InvalidJSONRPCVersionIsRejected(t *testing.T) {
	input := `{"jsonrpc":"1.0","id":1,"method":"ping"}` + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	responses := readResponses(t, out)
	if len(responses) != 1 || responses[0].Error == nil || responses[0].Error.Code != InvalidRequest {
		t.Fatalf("expected InvalidRequest error, got %+v", responses)
	}
}

func TestRun_DetectPIITool(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"detect_pii","arguments":{"text":"reach me at someone@example.com"}}}` + "\n"
	s, out := newTestServer(t, input)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	responses := readResponses(t, out)
	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("unexpected response: %+v", responses)
	}
}

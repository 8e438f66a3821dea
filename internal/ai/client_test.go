package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"task-planner/internal/tasks"
)

type fakeModel struct {
	calls    int
	reply    string
	err      error
	block    bool
	received [][]llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.received = append(f.received, msgs)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func textOf(m llms.MessageContent) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func newFakeClient(t *testing.T, m *fakeModel) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewWithModel(m, Options{Model: "test-model", Timeout: time.Second}, logger)
}

func TestDisabledClientNeverCallsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	c := New(Options{BaseURL: srv.URL, CredentialErr: errors.New("open key.txt: no such file")}, logger)

	status := c.Status()
	if status.Available {
		t.Fatal("client without key must be disabled")
	}
	if !strings.Contains(status.Reason, "key.txt") {
		t.Fatalf("expected reason to mention the credential error, got %q", status.Reason)
	}

	_, err := c.GeneratePlan(context.Background(), nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from GeneratePlan, got %v", err)
	}
	_, _, err = c.Chat(context.Background(), nil, "hi")
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError from Chat, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no network calls, got %d", n)
	}
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := New(Options{APIKey: "   "}, logger)
	if c.Available() {
		t.Fatal("blank key must disable the client")
	}
	if c.Status().Reason != "no API credential configured" {
		t.Fatalf("unexpected reason %q", c.Status().Reason)
	}
}

func TestGeneratePlanSendsTasksInFieldOrder(t *testing.T) {
	m := &fakeModel{reply: "- do T3\n- then T1"}
	c := newFakeClient(t, m)

	list := []tasks.Task{
		{ID: "x", Title: "T1", Deadline: "2024-06-01", Priority: tasks.PriorityHigh, Notes: "first"},
	}
	plan, err := c.GeneratePlan(context.Background(), list)
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if plan != m.reply {
		t.Fatalf("plan must be returned verbatim, got %q", plan)
	}
	if m.calls != 1 || len(m.received[0]) != 2 {
		t.Fatalf("expected one request with system and user messages, got %d calls", m.calls)
	}
	if m.received[0][0].Role != schema.ChatMessageTypeSystem || m.received[0][1].Role != schema.ChatMessageTypeHuman {
		t.Fatalf("unexpected roles: %v, %v", m.received[0][0].Role, m.received[0][1].Role)
	}

	prompt := textOf(m.received[0][1])
	order := []string{`"title": "T1"`, `"deadline": "2024-06-01"`, `"priority": "High"`, `"notes": "first"`}
	last := -1
	for _, field := range order {
		idx := strings.Index(prompt, field)
		if idx < 0 {
			t.Fatalf("prompt missing %s:\n%s", field, prompt)
		}
		if idx < last {
			t.Fatalf("field %s out of order in prompt:\n%s", field, prompt)
		}
		last = idx
	}
	if strings.Contains(prompt, `"id"`) {
		t.Fatalf("prompt must not carry task ids:\n%s", prompt)
	}
	if !strings.Contains(prompt, "bullet points") {
		t.Fatalf("prompt must ask for bullet points:\n%s", prompt)
	}
}

func TestGeneratePlanEmptyTasksStillCallsProvider(t *testing.T) {
	m := &fakeModel{reply: "Nothing to do today."}
	c := newFakeClient(t, m)

	plan, err := c.GeneratePlan(context.Background(), nil)
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if m.calls != 1 || plan != "Nothing to do today." {
		t.Fatalf("expected a provider call, calls=%d plan=%q", m.calls, plan)
	}
	if !strings.Contains(textOf(m.received[0][1]), "[]") {
		t.Fatalf("expected empty JSON array in prompt")
	}
}

func TestGeneratePlanProviderError(t *testing.T) {
	m := &fakeModel{err: errors.New("401 invalid api key")}
	c := newFakeClient(t, m)

	_, err := c.GeneratePlan(context.Background(), nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if !strings.Contains(err.Error(), "401 invalid api key") {
		t.Fatalf("underlying message must be attached, got %q", err.Error())
	}
	if m.calls != 1 {
		t.Fatalf("errors must not be retried, calls=%d", m.calls)
	}
}

func TestChatAppendsTurnsWithoutMutatingHistory(t *testing.T) {
	m := &fakeModel{reply: "Start with the report."}
	c := newFakeClient(t, m)

	history := []ChatMessage{{Role: RoleSystem, Content: "be helpful"}}
	updated, reply, err := c.Chat(context.Background(), history, "What first?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Start with the report." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(history) != 1 {
		t.Fatalf("history must not be mutated, got %#v", history)
	}
	want := []ChatMessage{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "What first?"},
		{Role: RoleAssistant, Content: "Start with the report."},
	}
	if len(updated) != len(want) {
		t.Fatalf("expected %d messages, got %#v", len(want), updated)
	}
	for i := range want {
		if updated[i] != want[i] {
			t.Fatalf("message %d: want %#v, got %#v", i, want[i], updated[i])
		}
	}
	if len(m.received[0]) != 2 || textOf(m.received[0][1]) != "What first?" {
		t.Fatalf("full transcript must be sent, got %#v", m.received[0])
	}
}

func TestChatFailureReturnsNoTranscript(t *testing.T) {
	m := &fakeModel{err: errors.New("provider down")}
	c := newFakeClient(t, m)

	history := []ChatMessage{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	updated, reply, err := c.Chat(context.Background(), history, "again")
	if err == nil {
		t.Fatal("expected error")
	}
	if updated != nil || reply != "" {
		t.Fatalf("failed chat must not return a transcript, got %#v %q", updated, reply)
	}
	if len(history) != 2 {
		t.Fatalf("history must stay untouched, got %#v", history)
	}
}

func TestChatTimeout(t *testing.T) {
	m := &fakeModel{block: true}
	logger, _ := test.NewNullLogger()
	c := NewWithModel(m, Options{Timeout: 20 * time.Millisecond}, logger)

	_, _, err := c.Chat(context.Background(), nil, "slow?")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T", err)
	}
}

func TestChatCanceledBeforeSend(t *testing.T) {
	m := &fakeModel{reply: "never"}
	c := newFakeClient(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Chat(ctx, nil, "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if m.calls != 0 {
		t.Fatalf("canceled request must not reach the provider, calls=%d", m.calls)
	}
}

func TestEmptyChoicesIsRequestError(t *testing.T) {
	c := newFakeClient(t, &fakeModel{})
	c.llm = emptyModel{}

	_, err := c.GeneratePlan(context.Background(), nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}

func TestOpenAICompatibleProvider(t *testing.T) {
	var hits int32
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1717000000,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "- Focus on T1"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	c := New(Options{APIKey: "secret", Model: "test-model", BaseURL: srv.URL, Timeout: 5 * time.Second, HTTPClient: srv.Client()}, logger)
	if !c.Available() {
		t.Fatalf("client should be available: %#v", c.Status())
	}

	plan, err := c.GeneratePlan(context.Background(), []tasks.Task{{Title: "T1", Deadline: "2024-06-01", Priority: tasks.PriorityHigh}})
	if err != nil {
		t.Fatalf("generate plan: %v", err)
	}
	if plan != "- Focus on T1" {
		t.Fatalf("unexpected plan %q", plan)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one request, got %d", hits)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"model":"test-model"`) {
		t.Fatalf("request must carry the model, got %s", gotBody)
	}
}

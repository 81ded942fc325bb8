package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/metrics"
)

// MockAsker implements Asker for testing. Both methods share AskFunc and
// record the method used.
type MockAsker struct {
	AskFunc func(ctx context.Context, question, sessionID string) (*kb.Answer, error)

	mu       sync.Mutex
	sessions []string
	methods  []string
}

func (m *MockAsker) Ask(ctx context.Context, question, sessionID string) (*kb.Answer, error) {
	return m.call(ctx, "ask", question, sessionID)
}

func (m *MockAsker) Converse(ctx context.Context, question, sessionID string) (*kb.Answer, error) {
	return m.call(ctx, "converse", question, sessionID)
}

func (m *MockAsker) call(ctx context.Context, method, question, sessionID string) (*kb.Answer, error) {
	m.mu.Lock()
	m.sessions = append(m.sessions, sessionID)
	m.methods = append(m.methods, method)
	m.mu.Unlock()

	if m.AskFunc != nil {
		return m.AskFunc(ctx, question, sessionID)
	}

	return &kb.Answer{Text: "ok"}, nil
}

func sampleAnswer(sessionID string) *kb.Answer {
	return &kb.Answer{
		Text:      "Metformin lowers blood sugar.",
		SessionID: sessionID,
		Citations: []kb.Citation{
			{Index: 1, Title: "Diabetes Basics", URL: "https://www.cdc.gov/diabetes", Snippet: "Metformin is first-line."},
			{Index: 2, Title: "abc.txt", URL: "s3://bucket/forums/abc.txt", Snippet: kb.NoSnippet},
		},
	}
}

func newTestServer(t *testing.T, asker Asker) *httptest.Server {
	t.Helper()

	srv := NewServer(asker, Options{
		Welcome:        "Hello!",
		RequestTimeout: 5 * time.Second,
		Metrics:        metrics.NewCollector("test"),
	}, logger.NewNop())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, ChatResponse) {
	t.Helper()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp, out
}

func TestServer_Chat(t *testing.T) {
	asker := &MockAsker{
		AskFunc: func(_ context.Context, question, _ string) (*kb.Answer, error) {
			assert.Equal(t, "What does metformin do?", question)
			return sampleAnswer("sess-1"), nil
		},
	}

	ts := newTestServer(t, asker)

	resp, out := postChat(t, ts, `{"message":"  What does metformin do? "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	want := "Metformin lowers blood sugar.\n\n**Sources:**\n" +
		"1. [Diabetes Basics](https://www.cdc.gov/diabetes)\n" +
		"2. [abc.txt](s3://bucket/forums/abc.txt)"
	assert.Equal(t, want, out.Content)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Len(t, out.Sources, 2)
}

func TestServer_ChatConversation(t *testing.T) {
	asker := &MockAsker{}
	ts := newTestServer(t, asker)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"one-shot", `{"message":"hi"}`, "ask"},
		{"conversation", `{"message":"hi","conversation":true}`, "converse"},
		{"follow-up", `{"message":"hi","sessionId":"sess-1"}`, "converse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postChat(t, ts, tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			asker.mu.Lock()
			defer asker.mu.Unlock()
			assert.Equal(t, tt.want, asker.methods[len(asker.methods)-1])
		})
	}
}

func TestServer_ChatValidation(t *testing.T) {
	ts := newTestServer(t, &MockAsker{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{`, "invalid JSON body"},
		{"missing message", `{"message":"   "}`, "message is required"},
		{"too long", `{"message":"` + strings.Repeat("a", 4001) + `"}`, "message must be at most 4000 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postChat(t, ts, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, out.Error)
		})
	}
}

func TestServer_ChatErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{
			"missing config",
			&kb.MissingConfigError{Names: []string{"BEDROCK_KB_ID", "BEDROCK_MODEL_ARN"}},
			http.StatusServiceUnavailable,
			"⚠️ Missing configuration: BEDROCK_KB_ID, BEDROCK_MODEL_ARN. Please export these environment variables and restart the server.",
		},
		{
			"bedrock",
			&kb.BedrockError{Op: "retrieve_and_generate", Err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}},
			http.StatusBadGateway,
			"⚠️ Bedrock error: api error AccessDeniedException: denied",
		},
		{"unavailable", kb.ErrUnavailable, http.StatusServiceUnavailable, unavailableText},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "⚠️ Unexpected error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &MockAsker{
				AskFunc: func(context.Context, string, string) (*kb.Answer, error) { return nil, tt.err },
			})

			resp, out := postChat(t, ts, `{"message":"hi"}`)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantText, out.Content)
		})
	}
}

func TestServer_Pages(t *testing.T) {
	ts := newTestServer(t, &MockAsker{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestSession(t *testing.T) {
	asker := &MockAsker{
		AskFunc: func(_ context.Context, _, sessionID string) (*kb.Answer, error) {
			if sessionID == "" {
				return sampleAnswer("sess-1"), nil
			}

			return &kb.Answer{Text: kb.NoResponseText, SessionID: sessionID}, nil
		},
	}

	ts := newTestServer(t, asker)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readMessage(t, conn)
	assert.Equal(t, TypeMessage, welcome.Type)
	assert.Equal(t, BannerAuthor, welcome.Author)
	assert.Equal(t, "Hello!", welcome.Content)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: "What does metformin do?"}))

	placeholder := readMessage(t, conn)
	assert.Equal(t, TypeMessage, placeholder.Type)
	assert.Empty(t, placeholder.Content)

	update := readMessage(t, conn)
	assert.Equal(t, TypeUpdate, update.Type)
	assert.Equal(t, placeholder.ID, update.ID)
	assert.Contains(t, update.Content, "**Sources:**\n1. [Diabetes Basics](https://www.cdc.gov/diabetes)")
	assert.Equal(t, []Element{
		{Name: "Source 1", Content: "Metformin is first-line.", Display: "inline"},
		{Name: "Source 2", Content: kb.NoSnippet, Display: "inline"},
	}, update.Elements)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: "And the side effects?"}))
	readMessage(t, conn)

	followUp := readMessage(t, conn)
	assert.Equal(t, kb.NoResponseText, followUp.Content)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeStop}))

	end := readMessage(t, conn)
	assert.Equal(t, TypeEnd, end.Type)
	assert.Equal(t, SessionEndedText, end.Content)
	assert.Equal(t, AssistantAuthor, end.Author)

	asker.mu.Lock()
	defer asker.mu.Unlock()
	assert.Equal(t, []string{"", "sess-1"}, asker.sessions)
	assert.Equal(t, []string{"converse", "converse"}, asker.methods)
}

func TestSession_EmptyMessage(t *testing.T) {
	asker := &MockAsker{}
	ts := newTestServer(t, asker)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: "  "}))
	readMessage(t, conn)

	update := readMessage(t, conn)
	assert.Equal(t, "⚠️ message is required", update.Content)
	assert.Empty(t, asker.sessions)
}

func dialSession(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestSession_SlowAnswerKeepsSessionAlive(t *testing.T) {
	asker := &MockAsker{
		AskFunc: func(ctx context.Context, question, _ string) (*kb.Answer, error) {
			select {
			case <-time.After(600 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			return &kb.Answer{Text: "answer " + question, SessionID: "sess-1"}, nil
		},
	}

	srv := NewServer(asker, Options{Welcome: "Hello!", RequestTimeout: 5 * time.Second}, logger.NewNop())
	srv.pongWait = 200 * time.Millisecond
	srv.pingPeriod = 50 * time.Millisecond

	conn := dialSession(t, srv)
	readMessage(t, conn)

	for _, question := range []string{"first", "second"} {
		require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: question}))

		placeholder := readMessage(t, conn)
		require.Equal(t, TypeMessage, placeholder.Type, "question %q", question)

		update := readMessage(t, conn)
		require.Equal(t, TypeUpdate, update.Type, "question %q", question)
		assert.Equal(t, "answer "+question, update.Content)
	}

	asker.mu.Lock()
	defer asker.mu.Unlock()
	assert.Equal(t, []string{"", "sess-1"}, asker.sessions)
}

func TestSession_StopDuringAnswer(t *testing.T) {
	asker := &MockAsker{
		AskFunc: func(ctx context.Context, _, _ string) (*kb.Answer, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	conn := dialSession(t, NewServer(asker, Options{Welcome: "Hello!", RequestTimeout: 5 * time.Second}, logger.NewNop()))
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUserMessage, Content: "Is this slow?"}))
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeStop}))

	end := readMessage(t, conn)
	assert.Equal(t, TypeEnd, end.Type)
	assert.Equal(t, SessionEndedText, end.Content)
}

func TestLoadWelcome(t *testing.T) {
	assert.Equal(t, DefaultWelcome, LoadWelcome(""))
	assert.Equal(t, DefaultWelcome, LoadWelcome(filepath.Join(t.TempDir(), "missing.md")))

	path := filepath.Join(t.TempDir(), "welcome.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hi"), 0644))
	assert.Equal(t, "# Hi", LoadWelcome(path))
}

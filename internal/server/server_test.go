package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/agent"
	"github.com/spigell/draft-n-pray/internal/knowledge"
	"github.com/spigell/draft-n-pray/internal/tools"
)

type fakeAssistant struct {
	sessions *agent.Sessions
	err      error
	thread   string
}

func (f *fakeAssistant) Run(_ context.Context, thread, message string, onEvent func(agent.Event)) (string, error) {
	f.thread = thread
	onEvent(agent.Event{Type: agent.EventToolCall, Thread: thread, Tool: "search_cv"})
	onEvent(agent.Event{Type: agent.EventToolResult, Thread: thread, Tool: "search_cv", Content: "result"})
	if f.err != nil {
		return "", f.err
	}
	onEvent(agent.Event{Type: agent.EventMessage, Thread: thread, Content: "echo: " + message})
	return "echo: " + message, nil
}

func (f *fakeAssistant) Sessions() *agent.Sessions { return f.sessions }

type fakeKB struct {
	stats      *knowledge.Stats
	err        error
	uploadSize int
	path       string
}

func (f *fakeKB) IngestAs(_ context.Context, path, source string) (*knowledge.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.uploadSize = len(data)
	f.path = path
	f.stats = &knowledge.Stats{Source: source, Chunks: 3}
	copied := *f.stats
	return &copied, nil
}

func (f *fakeKB) Stats() (knowledge.Stats, bool) {
	if f.stats == nil {
		return knowledge.Stats{}, false
	}
	return *f.stats, true
}

func newTestServer(assistant *fakeAssistant, kb *fakeKB) http.Handler {
	infos := []tools.Info{{Name: "search_cv", Description: "Search the CV"}}
	return New(assistant, kb, infos, Options{Model: "gemini-2.5-flash", Crawler: "local"}, zap.NewNop()).Handler()
}

func readEvents(t *testing.T, body *bytes.Buffer) []agent.Event {
	t.Helper()
	var events []agent.Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var event agent.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("decode event %q: %v", scanner.Text(), err)
		}
		events = append(events, event)
	}
	return events
}

func TestStatus(t *testing.T) {
	handler := newTestServer(&fakeAssistant{sessions: agent.NewSessions()}, &fakeKB{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready || resp.CV != nil || resp.Model != "gemini-2.5-flash" || len(resp.Tools) != 1 {
		t.Fatalf("unexpected status response: %+v", resp)
	}
}

func TestUploadCV(t *testing.T) {
	kb := &fakeKB{}
	handler := newTestServer(&fakeAssistant{sessions: agent.NewSessions()}, kb)

	upload := func(filename string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte("%PDF-1.4 fake"))
		w.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/cv", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := upload("notes.txt"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected non-pdf upload to be rejected, got %d", rec.Code)
	}

	rec := upload("my-cv.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var stats knowledge.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Source != "my-cv.pdf" || stats.Chunks != 3 || kb.uploadSize != len("%PDF-1.4 fake") {
		t.Fatalf("unexpected stats %+v (size %d)", stats, kb.uploadSize)
	}

	status := httptest.NewRecorder()
	handler.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var resp statusResponse
	if err := json.Unmarshal(status.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !resp.Ready || resp.CV == nil || resp.CV.Source != "my-cv.pdf" {
		t.Fatalf("status must report the uploaded file name, got %+v", resp.CV)
	}
	if kb.path == "" || kb.path == "my-cv.pdf" {
		t.Fatalf("upload must be ingested from a temporary file, got %q", kb.path)
	}
	if _, err := os.Stat(kb.path); !os.IsNotExist(err) {
		t.Fatalf("temporary upload must be removed, stat err = %v", err)
	}

	kb.err = errors.New("no content found in document")
	if rec := upload("empty.pdf"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected ingest failure status, got %d", rec.Code)
	}
}

func TestChatStreamsEvents(t *testing.T) {
	cases := []struct {
		name      string
		showTools bool
		wantTypes []agent.EventType
	}{
		{name: "message only", wantTypes: []agent.EventType{agent.EventMessage}},
		{name: "with tool calls", showTools: true, wantTypes: []agent.EventType{agent.EventToolCall, agent.EventToolResult, agent.EventMessage}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assistant := &fakeAssistant{sessions: agent.NewSessions()}
			handler := newTestServer(assistant, &fakeKB{})

			payload, _ := json.Marshal(chatRequest{ThreadID: "t1", Message: "hi", ShowToolCalls: tc.showTools})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload)))

			if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/x-ndjson" {
				t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
			}

			events := readEvents(t, rec.Body)
			if len(events) != len(tc.wantTypes) {
				t.Fatalf("expected %d events, got %+v", len(tc.wantTypes), events)
			}
			for i, event := range events {
				if event.Type != tc.wantTypes[i] || event.Thread != "t1" {
					t.Fatalf("unexpected event %d: %+v", i, event)
				}
			}
			if events[len(events)-1].Content != "echo: hi" {
				t.Fatalf("unexpected answer %+v", events[len(events)-1])
			}
		})
	}
}

func TestChatErrors(t *testing.T) {
	assistant := &fakeAssistant{sessions: agent.NewSessions(), err: errors.New("quota exceeded")}
	handler := newTestServer(assistant, &fakeKB{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "hi"}`)))

	events := readEvents(t, rec.Body)
	if len(events) != 1 || events[0].Type != "error" || events[0].Error != "quota exceeded" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if assistant.thread == "" || events[0].Thread != assistant.thread {
		t.Fatalf("expected a generated thread id, got %q", events[0].Thread)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": " "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request for empty message, got %d", rec.Code)
	}
}

func TestResetChat(t *testing.T) {
	sessions := agent.NewSessions()
	sessions.Save("t1", nil)
	handler := newTestServer(&fakeAssistant{sessions: sessions}, &fakeKB{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/chat/t1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

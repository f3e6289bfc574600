package messenger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type botServer struct {
	mu       sync.Mutex
	requests []*http.Request
	forms    []map[string]string
	failSend bool
}

func (s *botServer) handler(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}

	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.forms = append(s.forms, form)
	failSend := s.failSend
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"portalerts_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage") && failSend:
		_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"date":1760000000,"chat":{"id":1001,"type":"private"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestTelegram(t *testing.T, server *botServer) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(server.handler))
	t.Cleanup(srv.Close)

	sender, err := NewTelegram(TelegramOptions{
		Token:       "123:abc",
		APIEndpoint: srv.URL + "/bot%s/%s",
		Timeout:     time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new telegram: %v", err)
	}
	return sender
}

func TestTelegram_SendHTML(t *testing.T) {
	t.Parallel()

	server := &botServer{}
	sender := newTestTelegram(t, server)
	if sender.Username() != "portalerts_bot" {
		t.Fatalf("unexpected bot username %q", sender.Username())
	}

	result, err := sender.Send(context.Background(), Message{ChatID: 1001, Text: "<b>Kaspa</b>", Format: FormatHTML})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.MessageID != "42" {
		t.Fatalf("expected message id 42, got %q", result.MessageID)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	last := server.forms[len(server.forms)-1]
	if last["chat_id"] != "1001" {
		t.Fatalf("unexpected chat_id %q", last["chat_id"])
	}
	if last["parse_mode"] != "HTML" {
		t.Fatalf("expected HTML parse mode, got %q", last["parse_mode"])
	}
	if last["disable_web_page_preview"] != "true" {
		t.Fatalf("expected link preview disabled, got %q", last["disable_web_page_preview"])
	}
}

func TestTelegram_SendErrorIsReturned(t *testing.T) {
	t.Parallel()

	server := &botServer{failSend: true}
	sender := newTestTelegram(t, server)

	if _, err := sender.Send(context.Background(), Message{ChatID: 1001, Text: "hello"}); err == nil {
		t.Fatalf("expected error from blocked chat")
	}
}

func TestTelegram_SendCancelledContext(t *testing.T) {
	t.Parallel()

	server := &botServer{}
	sender := newTestTelegram(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sender.Send(ctx, Message{ChatID: 1001, Text: "hello"}); err == nil {
		t.Fatalf("expected context error")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	for _, r := range server.requests {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("expected no sendMessage call after cancellation")
		}
	}
}

func TestNewTelegram_RequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegram(TelegramOptions{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without token")
	}
}

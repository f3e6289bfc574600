package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"horse.fit/portalerts/internal/db"
)

func commandUpdate(chatID int64, text string) string {
	command := strings.Fields(text)[0]
	return `{"update_id":1,"message":{"message_id":10,"date":1760000000,` +
		`"chat":{"id":` + strconv.FormatInt(chatID, 10) + `,"type":"private"},"text":"` + text + `",` +
		`"entities":[{"type":"bot_command","offset":0,"length":` + strconv.Itoa(len(command)) + `}]}}`
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWebhookStatusForLinkedChat(t *testing.T) {
	t.Parallel()

	username := "kaspafan"
	store := &fakeStore{subscribers: map[int64]*db.SubscriberStatus{
		42: {TelegramChatID: 42, TelegramUsername: &username, DefaultThreshold: 8, Active: true, ActiveSubscriptions: 3},
	}}
	replier := &fakeReplier{}
	srv := newTestServer(store, &fakeRunner{}, replier, Options{})

	rec, body := serve(t, srv, webhookRequest(commandUpdate(42, "/status")))
	if rec.Code != http.StatusOK || body.Status != "success" {
		t.Fatalf("expected success, got %d %s", rec.Code, rec.Body.String())
	}
	if len(replier.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replier.replies))
	}
	got := replier.replies[0]
	if got.chatID != 42 {
		t.Fatalf("reply sent to wrong chat: %d", got.chatID)
	}
	for _, want := range []string{"@kaspafan", "Monitoring 3 projects", "8/10"} {
		if !strings.Contains(got.text, want) {
			t.Fatalf("status reply missing %q: %q", want, got.text)
		}
	}
}

func TestWebhookSettingsForUnlinkedChat(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{}
	srv := newTestServer(&fakeStore{}, &fakeRunner{}, replier, Options{})

	rec, _ := serve(t, srv, webhookRequest(commandUpdate(99, "/settings")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(replier.replies) != 1 || replier.replies[0].text != notLinkedText {
		t.Fatalf("expected not-linked reply, got %#v", replier.replies)
	}
}

func TestWebhookHelpAndStartDoNotTouchStore(t *testing.T) {
	t.Parallel()

	store := &fakeStore{lookupErr: errors.New("must not be called")}
	replier := &fakeReplier{}
	srv := newTestServer(store, &fakeRunner{}, replier, Options{})

	for _, text := range []string{"/help", "/start abc123"} {
		rec, _ := serve(t, srv, webhookRequest(commandUpdate(5, text)))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", text, rec.Code)
		}
	}
	if len(replier.replies) != 2 {
		t.Fatalf("expected two replies, got %d", len(replier.replies))
	}
	if !strings.Contains(replier.replies[0].text, "/settings") {
		t.Fatalf("help reply should list commands: %q", replier.replies[0].text)
	}
	if !strings.HasPrefix(replier.replies[1].text, "Welcome to PortAlerts") {
		t.Fatalf("unexpected start reply: %q", replier.replies[1].text)
	}
}

func TestWebhookIgnoresPlainTextAndUnknownCommands(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{}
	srv := newTestServer(&fakeStore{}, &fakeRunner{}, replier, Options{})

	plain := `{"update_id":2,"message":{"message_id":11,"date":1760000000,"chat":{"id":5,"type":"private"},"text":"gm"}}`
	for _, body := range []string{plain, commandUpdate(5, "/price"), `{"update_id":3}`} {
		rec, _ := serve(t, srv, webhookRequest(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if len(replier.replies) != 0 {
		t.Fatalf("expected no replies, got %#v", replier.replies)
	}
}

func TestWebhookSecretToken(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{}
	srv := newTestServer(&fakeStore{}, &fakeRunner{}, replier, Options{WebhookSecret: "hook"})

	rec, body := serve(t, srv, webhookRequest(commandUpdate(5, "/help")))
	if rec.Code != http.StatusUnauthorized || body.Status != "fail" {
		t.Fatalf("expected 401 fail, got %d %q", rec.Code, body.Status)
	}

	req := webhookRequest(commandUpdate(5, "/help"))
	req.Header.Set(webhookSecretHeader, "hook")
	rec, _ = serve(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", rec.Code)
	}
	if len(replier.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replier.replies))
	}
}

func TestWebhookLookupFailureIsInternalError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{lookupErr: errors.New("db down")}
	srv := newTestServer(store, &fakeRunner{}, &fakeReplier{}, Options{})

	rec, body := serve(t, srv, webhookRequest(commandUpdate(5, "/status")))
	if rec.Code != http.StatusInternalServerError || body.Status != "error" {
		t.Fatalf("expected 500 error envelope, got %d %q", rec.Code, body.Status)
	}
}

func TestCommandName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/status":           "status",
		"/Settings@PortBot": "settings",
		"  /help   please":  "help",
		"hello":             "",
	}
	for text, want := range cases {
		msg := &tgbotapi.Message{Text: text}
		if got := commandName(msg); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", text, got, want)
		}
	}
}

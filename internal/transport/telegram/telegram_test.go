package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/mediagrab/internal/transport"
)

// fakeBotAPI answers Bot API methods; reply maps a method to its JSON body.
type fakeBotAPI struct {
	mu     sync.Mutex
	reply  map[string]string
	forms  map[string][]map[string]string
	upload map[string]int64
	// hold blocks a method until the channel is closed or the request ends.
	hold map[string]chan struct{}
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{
		reply: map[string]string{
			"getMe": `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"grab","username":"grab_bot"}}`,
		},
		forms:  map[string][]map[string]string{},
		upload: map[string]int64{},
		hold:   map[string]chan struct{}{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	form := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		mr, err := r.MultipartReader()
		if err == nil {
			for {
				part, err := mr.NextPart()
				if err != nil {
					break
				}
				if part.FileName() != "" {
					n, _ := io.Copy(io.Discard, part)
					f.mu.Lock()
					f.upload[part.FileName()] = n
					f.mu.Unlock()
					form[part.FormName()] = part.FileName()
					continue
				}
				b, _ := io.ReadAll(part)
				form[part.FormName()] = string(b)
			}
		}
	} else {
		_ = r.ParseForm()
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
	}
	f.mu.Lock()
	f.forms[method] = append(f.forms[method], form)
	body, ok := f.reply[method]
	hold := f.hold[method]
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	if !ok {
		body = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeBotAPI) set(method, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply[method] = body
}

// block makes method hang until the test ends.
func (f *fakeBotAPI) block(t *testing.T, method string) {
	t.Helper()
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[method] = ch
	f.mu.Unlock()
	t.Cleanup(func() { close(ch) })
}

func (f *fakeBotAPI) calls(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.forms[method]...)
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	a, err := New(nil, "123:abc", Options{Endpoint: srv.URL + "/bot%s/%s", Client: srv.Client(), PollTimeout: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, "  ", Options{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNewReportsUsername(t *testing.T) {
	t.Parallel()

	_, srv := newFakeBotAPI(t)
	if got := newTestAdapter(t, srv).Username(); got != "grab_bot" {
		t.Fatalf("Username() = %q, want grab_bot", got)
	}
}

func TestSendTextUsesHTMLAndReply(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	api.set("sendMessage", `{"ok":true,"result":{"message_id":55,"date":0,"chat":{"id":42,"type":"private"}}}`)
	a := newTestAdapter(t, srv)

	ref, err := a.SendText(context.Background(), 42, 7, "<b>hi</b>")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if ref.ChatID != 42 || ref.MessageID != 55 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	calls := api.calls("sendMessage")
	if len(calls) != 1 {
		t.Fatalf("expected 1 sendMessage, got %d", len(calls))
	}
	if calls[0]["parse_mode"] != tgbotapi.ModeHTML || calls[0]["reply_to_message_id"] != "7" || calls[0]["text"] != "<b>hi</b>" {
		t.Fatalf("unexpected form: %#v", calls[0])
	}
}

func TestEditTextNotModifiedIsNil(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	api.set("editMessageText", `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`)
	a := newTestAdapter(t, srv)

	if err := a.EditText(context.Background(), transport.MessageRef{ChatID: 42, MessageID: 1}, "same"); err != nil {
		t.Fatalf("not modified should be swallowed: %v", err)
	}
}

func TestUploadRateLimitBecomesRateLimitError(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	api.set("sendVideo", `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`)
	a := newTestAdapter(t, srv)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := a.SendVideo(context.Background(), transport.Upload{ChatID: 42, Path: path, Caption: "c", HTML: true})
	rl, ok := transport.AsRateLimit(err)
	if !ok {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %s, want 7s", rl.RetryAfter)
	}
}

func TestSendPhotoReportsUploadProgress(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	api.set("sendPhoto", `{"ok":true,"result":{"message_id":9,"date":0,"chat":{"id":42,"type":"private"}}}`)
	a := newTestAdapter(t, srv)
	payload := strings.Repeat("p", 64*1024)
	path := filepath.Join(t.TempDir(), "photo_1.jpg")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var last, total int64
	err := a.SendPhoto(context.Background(), transport.Upload{
		ChatID:  42,
		ReplyTo: 3,
		Path:    path,
		Caption: "📸 <b>Image 1/2</b>",
		HTML:    true,
		OnProgress: func(sent, n int64) {
			mu.Lock()
			defer mu.Unlock()
			last, total = sent, n
		},
	})
	if err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != int64(len(payload)) || total != int64(len(payload)) {
		t.Fatalf("progress ended at %d/%d", last, total)
	}
	calls := api.calls("sendPhoto")
	if len(calls) != 1 {
		t.Fatalf("expected 1 sendPhoto, got %d", len(calls))
	}
	if calls[0]["caption"] != "📸 <b>Image 1/2</b>" || calls[0]["parse_mode"] != tgbotapi.ModeHTML || calls[0]["photo"] != "photo_1.jpg" {
		t.Fatalf("unexpected form: %#v", calls[0])
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.upload["photo_1.jpg"] != int64(len(payload)) {
		t.Fatalf("server received %d bytes", api.upload["photo_1.jpg"])
	}
}

func TestListenDispatchesMessages(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	updates := []map[string]any{
		{"update_id": 10, "message": map[string]any{
			"message_id": 1, "date": 1700000000,
			"chat": map[string]any{"id": 42, "type": "private"},
			"from": map[string]any{"id": 5, "is_bot": false, "first_name": "a", "username": "alice"},
			"text": "/start@grab_bot",
			"entities": []map[string]any{{"type": "bot_command", "offset": 0, "length": 15}},
		}},
		{"update_id": 11, "message": map[string]any{
			"message_id": 2, "date": 1700000001,
			"chat": map[string]any{"id": 42, "type": "private"},
			"text": "https://instagram.com/reel/abc",
		}},
		{"update_id": 12, "edited_message": map[string]any{
			"message_id": 2, "date": 1700000001,
			"chat": map[string]any{"id": 42, "type": "private"},
			"text": "ignored",
		}},
	}
	body, err := json.Marshal(map[string]any{"ok": true, "result": updates})
	if err != nil {
		t.Fatal(err)
	}
	api.set("getUpdates", string(body))
	a := newTestAdapter(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan transport.Inbound, 4)
	done := make(chan error, 1)
	go func() {
		done <- a.Listen(ctx, func(_ context.Context, in transport.Inbound) error {
			got <- in
			return nil
		})
	}()

	seen := map[int]transport.Inbound{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case in := <-got:
			seen[in.MessageID] = in
		case <-timeout:
			t.Fatalf("timed out, got %d messages", len(seen))
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}

	if seen[1].Command != "start" || seen[1].Username != "alice" || seen[1].UserID != 5 {
		t.Fatalf("unexpected command message: %+v", seen[1])
	}
	if seen[2].Command != "" || seen[2].Text != "https://instagram.com/reel/abc" || seen[2].ChatID != 42 {
		t.Fatalf("unexpected text message: %+v", seen[2])
	}
}

func TestListenReturnsWithoutWaitingForPendingPoll(t *testing.T) {
	t.Parallel()

	api, srv := newFakeBotAPI(t)
	api.block(t, "getUpdates")
	a := newTestAdapter(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Listen(ctx, func(context.Context, transport.Inbound) error { return nil })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(api.calls("getUpdates")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("getUpdates was never called")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen waited for the pending getUpdates call")
	}
}

func TestIsTelegramMessageNotModified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", fmt.Errorf("network error"), false},
		{"other api error", tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, false},
		{"not modified value", tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}, true},
		{"not modified pointer", &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}, true},
		{"same text but code 500", tgbotapi.Error{Code: 500, Message: "message is not modified"}, false},
		{"wrapped", fmt.Errorf("wrapped: %w", tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTelegramMessageNotModified(tt.err); got != tt.want {
				t.Fatalf("isTelegramMessageNotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapTelegramError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantWait time.Duration
		limited  bool
	}{
		{"plain", fmt.Errorf("boom"), 0, false},
		{"400", tgbotapi.Error{Code: 400, Message: "Bad Request"}, 0, false},
		{"429 with retry_after", &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 2}}, 2 * time.Second, true},
		{"429 without retry_after", tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, fallbackRetryAfter, true},
		{"upload error without code", &tgbotapi.Error{Message: "Too Many Requests: retry after 5", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5}}, 5 * time.Second, true},
		{"upload error without retry_after", &tgbotapi.Error{Message: "Bad Request: file is too big"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, ok := transport.AsRateLimit(wrapTelegramError(tt.err))
			if ok != tt.limited {
				t.Fatalf("limited = %v, want %v", ok, tt.limited)
			}
			if ok && rl.RetryAfter != tt.wantWait {
				t.Fatalf("RetryAfter = %s, want %s", rl.RetryAfter, tt.wantWait)
			}
		})
	}
}

func TestTruncateTelegramText(t *testing.T) {
	t.Parallel()

	if got := truncateTelegramText("hello", telegramMaxMessageLength); got != "hello" {
		t.Fatalf("short text changed: %q", got)
	}
	long := strings.Repeat("é", telegramMaxMessageLength)
	got := truncateTelegramText(long, telegramMaxMessageLength)
	if len(got) > telegramMaxMessageLength {
		t.Fatalf("len = %d exceeds limit", len(got))
	}
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "...") {
		t.Fatalf("bad truncation: %q", got[len(got)-8:])
	}
}

func TestSanitizeTelegramText(t *testing.T) {
	t.Parallel()

	if got := sanitizeTelegramText("hello\xffworld"); got != "helloworld" {
		t.Fatalf("expected invalid bytes stripped: %q", got)
	}
}

func TestToInboundSkipsEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := toInbound(nil); ok {
		t.Fatal("nil message should be skipped")
	}
	if _, ok := toInbound(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}); ok {
		t.Fatal("empty text should be skipped")
	}
	in, ok := toInbound(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Caption: " link "})
	if !ok || in.Text != "link" {
		t.Fatalf("caption should be used: %+v", in)
	}
}

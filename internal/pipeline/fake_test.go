package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/memohai/mediagrab/internal/fetch"
	"github.com/memohai/mediagrab/internal/link"
	"github.com/memohai/mediagrab/internal/resolver"
	"github.com/memohai/mediagrab/internal/transport"
)

type call struct {
	op      string
	text    string
	caption string
	// name is the base name of the uploaded file.
	name string
	// exists reports whether the upload file was on disk at send time.
	exists bool
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   []call
	nextID  int
	uploadN int
	// uploadErrs maps the 1-based upload call number to its error.
	uploadErrs map[int]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{uploadErrs: map[int]error{}}
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, _ int, html string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.calls = append(f.calls, call{op: "send_text", text: html})
	return transport.MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) EditText(_ context.Context, _ transport.MessageRef, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "edit", text: html})
	return nil
}

func (f *fakeTransport) Delete(context.Context, transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "delete"})
	return nil
}

func (f *fakeTransport) upload(op string, up transport.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, statErr := os.Stat(up.Path)
	f.calls = append(f.calls, call{op: op, caption: up.Caption, name: filepath.Base(up.Path), exists: statErr == nil})
	f.uploadN++
	return f.uploadErrs[f.uploadN]
}

func (f *fakeTransport) SendVideo(_ context.Context, up transport.Upload) error {
	return f.upload("video", up)
}

func (f *fakeTransport) SendDocument(_ context.Context, up transport.Upload) error {
	return f.upload("document", up)
}

func (f *fakeTransport) SendPhoto(_ context.Context, up transport.Upload) error {
	return f.upload("photo", up)
}

func (f *fakeTransport) ops(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type stubResolver struct {
	mu    sync.Mutex
	res   resolver.Resolution
	err   error
	descs []link.Descriptor
}

func (s *stubResolver) Resolve(_ context.Context, desc link.Descriptor) (resolver.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descs = append(s.descs, desc)
	return s.res, s.err
}

// fakeFetcher writes fixed content, or runs write when set.
type fakeFetcher struct {
	mu      sync.Mutex
	content []byte
	write   func(dest string) error
	err     error
	urls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest string, _ fetch.ProgressFunc) (fetch.Result, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	if f.write != nil {
		if err := f.write(dest); err != nil {
			return fetch.Result{}, err
		}
		info, err := os.Stat(dest)
		if err != nil {
			return fetch.Result{}, err
		}
		return fetch.Result{Path: dest, Bytes: info.Size()}, nil
	}
	if err := os.WriteFile(dest, f.content, 0o644); err != nil {
		return fetch.Result{}, err
	}
	return fetch.Result{Path: dest, Bytes: int64(len(f.content))}, nil
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []Status
	bytes    int64
	waits    []time.Duration
}

func (o *countingObserver) ObserveOutcome(_ link.Provider, s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, s)
}

func (o *countingObserver) AddFetchedBytes(n int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bytes += n
}

func (o *countingObserver) ObserveRateLimitWait(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits = append(o.waits, d)
}

var errBoom = errors.New("boom")

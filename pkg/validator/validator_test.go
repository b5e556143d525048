package validator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"navportal/pkg/cache"
	"navportal/pkg/models"
	"navportal/pkg/session"
	"navportal/pkg/storage"
)

type fakeChecker struct {
	valid bool
	err   error
	calls atomic.Int32
}

func (f *fakeChecker) CheckToken(context.Context) (bool, error) {
	f.calls.Add(1)
	return f.valid, f.err
}

type recorder struct {
	mu        sync.Mutex
	toasts    []string
	redirects chan string
}

func newRecorder() *recorder {
	return &recorder{redirects: make(chan string, 4)}
}

func (r *recorder) Toast(level, message string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, level+":"+message)
	r.mu.Unlock()
}

func (r *recorder) Redirect(path string) { r.redirects <- path }

func (r *recorder) toastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

type env struct {
	sessions *session.Store
	cache    *cache.Manager
	checker  *fakeChecker
	notify   *recorder
	v        *Validator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := storage.NewMemory()
	e := &env{
		sessions: session.New(store),
		cache:    cache.New(store),
		checker:  &fakeChecker{valid: true},
		notify:   newRecorder(),
	}
	e.v = New(e.sessions, e.cache, e.checker, e.notify, Config{
		Interval:      time.Hour,
		RedirectDelay: 10 * time.Millisecond,
	})
	return e
}

func (e *env) signIn(t *testing.T, expires time.Time) {
	t.Helper()
	tok := models.Token{AccessToken: "t", ExpiresAt: &models.Timestamp{Time: expires}}
	if err := e.sessions.Save(context.Background(), tok, &models.User{ID: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestNoSessionSkipsNetwork(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	if got := e.v.Check(context.Background(), TriggerFocus); got != Unauthenticated {
		t.Fatalf("state = %v", got)
	}
	if e.checker.calls.Load() != 0 {
		t.Fatal("checker called without a session")
	}
}

func TestLocalExpirySkipsNetwork(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.signIn(t, time.Now().Add(-time.Minute))
	ctx := context.Background()
	e.cache.SetWebsites(ctx, []models.Website{{ID: 1}})

	if got := e.v.Check(ctx, TriggerVisible); got != Unauthenticated {
		t.Fatalf("state = %v", got)
	}
	if e.checker.calls.Load() != 0 {
		t.Fatal("checker called for a locally expired token")
	}
	if e.sessions.IsAuthenticated(ctx) {
		t.Fatal("session not purged")
	}
	if _, ok := e.cache.Websites(ctx); ok {
		t.Fatal("cache not cleared")
	}
	select {
	case to := <-e.notify.redirects:
		if to != LoginPath {
			t.Fatalf("redirect = %q", to)
		}
	case <-time.After(time.Second):
		t.Fatal("no redirect")
	}
	if e.notify.toastCount() != 1 {
		t.Fatalf("toasts = %v", e.notify.toasts)
	}
}

func TestServerRejection(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.signIn(t, time.Now().Add(time.Hour))
	e.checker.valid = false

	if got := e.v.Check(context.Background(), TriggerInterval); got != Unauthenticated {
		t.Fatalf("state = %v", got)
	}
	select {
	case <-e.notify.redirects:
	case <-time.After(time.Second):
		t.Fatal("no redirect")
	}
}

func TestInconclusiveKeepsState(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.signIn(t, time.Now().Add(time.Hour))
	ctx := context.Background()

	if got := e.v.Check(ctx, TriggerStartup); got != Authenticated {
		t.Fatalf("state = %v", got)
	}

	e.checker.valid, e.checker.err = false, errors.New("dial tcp: connection refused")
	if got := e.v.Check(ctx, TriggerFocus); got != Authenticated {
		t.Fatalf("state after network error = %v", got)
	}
	if !e.sessions.IsAuthenticated(ctx) {
		t.Fatal("network error purged the session")
	}
	if e.notify.toastCount() != 0 {
		t.Fatal("network error produced a toast")
	}
}

func TestStopCancelsRedirect(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.v.cfg.RedirectDelay = 200 * time.Millisecond
	e.signIn(t, time.Now().Add(-time.Minute))

	e.v.Check(context.Background(), TriggerFocus)
	e.v.Stop()

	select {
	case to := <-e.notify.redirects:
		t.Fatalf("redirect to %q after Stop", to)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestStartChecksImmediately(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.signIn(t, time.Now().Add(time.Hour))

	e.v.Start(context.Background())
	defer e.v.Stop()

	deadline := time.Now().Add(time.Second)
	for e.checker.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no startup check")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for e.v.State() != Authenticated {
		if time.Now().After(deadline) {
			t.Fatal("state never became authenticated")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

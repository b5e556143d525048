// Package validator keeps the local session in step with the server by
// checking the token at startup, on a fixed interval and whenever a page
// becomes visible or focused.
package validator

import (
	"context"
	"log"
	"sync"
	"time"

	"navportal/pkg/session"
)

const (
	DefaultInterval      = 5 * time.Minute
	DefaultRedirectDelay = 2 * time.Second

	ExpiredMessage = "Session expired, please log in again"
	LoginPath      = "/login"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerInterval Trigger = "interval"
	TriggerVisible  Trigger = "visible"
	TriggerFocus    Trigger = "focus"
	TriggerManual   Trigger = "manual"
)

// TokenChecker asks the server whether the stored token is still accepted.
// A non-nil error means the answer is unknown.
type TokenChecker interface {
	CheckToken(ctx context.Context) (bool, error)
}

type Notifier interface {
	Toast(level, message string)
	Redirect(path string)
}

// CacheClearer drops every cached entry when the session expires.
type CacheClearer interface {
	ClearAll(ctx context.Context)
}

type Config struct {
	Interval      time.Duration
	RedirectDelay time.Duration
	Timeout       time.Duration
}

type Validator struct {
	sessions *session.Store
	cache    CacheClearer
	checker  TokenChecker
	notify   Notifier
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	redirect *time.Timer
	done     chan struct{}
}

func New(sessions *session.Store, c CacheClearer, checker TokenChecker, notify Notifier, cfg Config) *Validator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Validator{
		sessions: sessions,
		cache:    c,
		checker:  checker,
		notify:   notify,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// MarkAuthenticated is called right after a successful login.
func (v *Validator) MarkAuthenticated() {
	v.mu.Lock()
	v.state = Authenticated
	if v.redirect != nil {
		v.redirect.Stop()
		v.redirect = nil
	}
	v.mu.Unlock()
}

// MarkUnauthenticated records a logout or a purge done elsewhere.
func (v *Validator) MarkUnauthenticated() {
	v.mu.Lock()
	v.state = Unauthenticated
	v.mu.Unlock()
}

// Check runs one validation pass and returns the resulting state.
func (v *Validator) Check(ctx context.Context, trigger Trigger) State {
	sess, ok, err := v.sessions.Load(ctx)
	if err != nil {
		log.Printf("[VALIDATOR] %s: load session: %v", trigger, err)
	}
	if !ok {
		v.MarkUnauthenticated()
		return Unauthenticated
	}

	if sess.Expired(v.now()) {
		log.Printf("[VALIDATOR] %s: token expired locally", trigger)
		v.expire(ctx)
		return Unauthenticated
	}

	cctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	valid, err := v.checker.CheckToken(cctx)
	if err != nil {
		log.Printf("[VALIDATOR] %s: check inconclusive: %v", trigger, err)
		return v.State()
	}
	if !valid {
		log.Printf("[VALIDATOR] %s: server rejected token", trigger)
		v.expire(ctx)
		return Unauthenticated
	}

	v.mu.Lock()
	v.state = Authenticated
	v.mu.Unlock()
	return Authenticated
}

func (v *Validator) expire(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	purged, err := v.sessions.Purge(ctx)
	if err != nil {
		log.Printf("[VALIDATOR] purge session: %v", err)
	}
	if v.cache != nil {
		v.cache.ClearAll(ctx)
	}

	v.mu.Lock()
	v.state = Unauthenticated
	v.mu.Unlock()

	// Another path already purged and announced it.
	if !purged {
		return
	}
	if v.notify == nil {
		return
	}
	v.notify.Toast("error", ExpiredMessage)
	v.scheduleRedirect()
}

func (v *Validator) scheduleRedirect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.redirect != nil {
		v.redirect.Stop()
	}
	v.redirect = time.AfterFunc(v.cfg.RedirectDelay, func() {
		v.notify.Redirect(LoginPath)
	})
}

// Start checks once immediately and then on every interval until Stop or
// until ctx is done.
func (v *Validator) Start(ctx context.Context) {
	v.mu.Lock()
	if v.cancel != nil {
		v.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	done := v.done
	v.mu.Unlock()

	go func() {
		defer close(done)
		v.Check(ctx, TriggerStartup)

		ticker := time.NewTicker(v.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v.Check(ctx, TriggerInterval)
			}
		}
	}()
	log.Printf("[VALIDATOR] Started, interval=%s", v.cfg.Interval)
}

// Stop cancels the ticker and any pending redirect.
func (v *Validator) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	if v.redirect != nil {
		v.redirect.Stop()
		v.redirect = nil
	}
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("[VALIDATOR] Stopped")
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"navportal/pkg/cache"
	"navportal/pkg/models"
	"navportal/pkg/session"
	"navportal/pkg/storage"
)

type fixture struct {
	client   *Client
	sessions *session.Store
	cache    *cache.Manager
	hookHits atomic.Int32
}

func newFixture(t *testing.T, h http.Handler) *fixture {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := storage.NewMemory()
	f := &fixture{
		sessions: session.New(store),
		cache:    cache.New(store),
	}
	f.client = New(srv.URL+"/", f.sessions,
		WithCache(f.cache),
		WithUnauthorizedHook(func(string) { f.hookHits.Add(1) }),
	)
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	tok := models.Token{AccessToken: "tok123", TokenType: "bearer"}
	if err := f.sessions.Save(context.Background(), tok, &models.User{ID: 1, Username: "alice"}); err != nil {
		t.Fatalf("save session: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()
	var got string
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []models.Website{})
	}))
	f.login(t)

	if _, err := f.client.ListWebsites(context.Background()); err != nil {
		t.Fatalf("ListWebsites: %v", err)
	}
	if got != "bearer tok123" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestNoHeaderWithoutSession(t *testing.T) {
	t.Parallel()
	var got string
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []models.Website{})
	}))

	if _, err := f.client.ListActiveWebsites(context.Background()); err != nil {
		t.Fatalf("ListActiveWebsites: %v", err)
	}
	if got != "" {
		t.Fatalf("Authorization = %q, want empty", got)
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	t.Parallel()
	var path, query string
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		writeJSON(w, http.StatusOK, []models.Website{{ID: 1, Name: "Go"}})
	}))

	sites, err := f.client.ListActiveWebsites(context.Background())
	if err != nil {
		t.Fatalf("ListActiveWebsites: %v", err)
	}
	if path != "/websites/" || query != "is_active=true" {
		t.Fatalf("request = %s?%s", path, query)
	}
	if len(sites) != 1 || sites[0].Name != "Go" {
		t.Fatalf("sites = %+v", sites)
	}
}

func TestUnauthorizedPurgesOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	}))
	f.login(t)
	ctx := context.Background()
	f.cache.SetWebsites(ctx, []models.Website{{ID: 1}})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.client.ListMyWebsites(ctx)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		}()
	}
	wg.Wait()

	if n := f.hookHits.Load(); n != 1 {
		t.Fatalf("hook fired %d times, want 1", n)
	}
	if f.sessions.IsAuthenticated(ctx) {
		t.Fatal("session still present after 401")
	}
	if _, ok := f.cache.Websites(ctx); ok {
		t.Fatal("cache not cleared after 401")
	}
}

func TestPublicListingKeepsSessionOn401(t *testing.T) {
	t.Parallel()
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	}))
	f.login(t)
	ctx := context.Background()

	if _, err := f.client.ListActiveWebsites(ctx); err == nil {
		t.Fatal("expected error")
	}
	if !f.sessions.IsAuthenticated(ctx) {
		t.Fatal("public listing cleared the session")
	}
	if n := f.hookHits.Load(); n != 0 {
		t.Fatalf("hook fired %d times", n)
	}
}

func TestProtectedAdminGuard(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, models.User{})
	}))
	f.login(t)
	ctx := context.Background()
	admin := models.User{ID: 1, Username: models.AdminUsername, IsActive: true}
	off := false

	if _, err := f.client.UpdateUser(ctx, admin, models.UserUpdate{IsActive: &off}); !errors.Is(err, ErrProtectedAdmin) {
		t.Fatalf("UpdateUser err = %v", err)
	}
	if err := f.client.DeleteUser(ctx, admin); !errors.Is(err, ErrProtectedAdmin) {
		t.Fatalf("DeleteUser err = %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("server called %d times", n)
	}

	email := "root@example.com"
	if _, err := f.client.UpdateUser(ctx, admin, models.UserUpdate{Email: &email}); err != nil {
		t.Fatalf("UpdateUser email: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server called %d times, want 1", n)
	}
}

func TestNonJSONResponse(t *testing.T) {
	t.Parallel()
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>captive portal</html>"))
	}))

	_, err := f.client.ListActiveWebsites(context.Background())
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FormatError", err)
	}
	if fe.ContentType != "text/html" {
		t.Fatalf("ContentType = %q", fe.ContentType)
	}
}

func TestServerDetailVerbatim(t *testing.T) {
	t.Parallel()
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "该分类下还有网站，无法删除"})
	}))
	f.login(t)

	err := f.client.DeleteCategory(context.Background(), 3)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Status != http.StatusBadRequest || se.Detail != "该分类下还有网站，无法删除" {
		t.Fatalf("StatusError = %+v", se)
	}
	if Message(err) != se.Detail {
		t.Fatalf("Message = %q", Message(err))
	}
}

func TestNetworkError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, session.New(storage.NewMemory()), WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.ListActiveWebsites(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if !IsTransient(err) {
		t.Fatal("network error not transient")
	}
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()
	var deviceID string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		deviceID = r.Header.Get("X-Device-ID")
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "用户名或密码错误"})
			return
		}
		writeJSON(w, http.StatusOK, models.Token{AccessToken: "fresh", TokenType: "bearer"})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "bad token"})
			return
		}
		writeJSON(w, http.StatusOK, models.User{ID: 9, Username: "alice", IsActive: true})
	})
	f := newFixture(t, mux)
	ctx := context.Background()

	_, err := f.client.Login(ctx, "alice", "wrong")
	var se *StatusError
	if !errors.As(err, &se) || se.Detail != "用户名或密码错误" {
		t.Fatalf("bad login err = %v", err)
	}
	if f.hookHits.Load() != 0 {
		t.Fatal("failed login fired the unauthorized hook")
	}

	user, err := f.client.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != 9 {
		t.Fatalf("user = %+v", user)
	}
	if deviceID == "" {
		t.Fatal("missing X-Device-ID")
	}
	if got := f.sessions.AuthHeader(ctx); got != "bearer fresh" {
		t.Fatalf("AuthHeader = %q", got)
	}
	if u, ok := f.sessions.User(ctx); !ok || u.ID != 9 {
		t.Fatalf("stored user = %+v ok=%v", u, ok)
	}
}

func TestCheckToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"valid", http.StatusOK, true, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
		{"forbidden", http.StatusForbidden, false, false},
		{"server error", http.StatusInternalServerError, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusOK {
					writeJSON(w, http.StatusOK, models.User{ID: 1, Username: "alice"})
					return
				}
				writeJSON(w, tt.status, map[string]string{"detail": "x"})
			}))
			f.login(t)

			ok, err := f.client.CheckToken(context.Background())
			if ok != tt.want || (err != nil) != tt.wantErr {
				t.Fatalf("CheckToken = %v, %v", ok, err)
			}
			if f.hookHits.Load() != 0 {
				t.Fatal("CheckToken fired the unauthorized hook")
			}
		})
	}
}

func TestLogoutAlwaysClearsLocal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "down"})
	}))
	f.login(t)
	ctx := context.Background()

	if err := f.client.Logout(ctx); err == nil {
		t.Fatal("expected server error")
	}
	if f.sessions.IsAuthenticated(ctx) {
		t.Fatal("session survived logout")
	}
}

func TestSaveOrdersInvalidatesCache(t *testing.T) {
	t.Parallel()
	var body []models.UserWebsiteOrder
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/user-website-orders/batch" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		writeJSON(w, http.StatusOK, body)
	}))
	f.login(t)
	ctx := context.Background()
	f.cache.SetMyWebsites(ctx, []models.Website{{ID: 1}})

	orders := []models.UserWebsiteOrder{{UserID: 1, WebsiteID: 2, Position: 0}, {UserID: 1, WebsiteID: 1, Position: 1}}
	got, err := f.client.SaveOrders(ctx, orders)
	if err != nil {
		t.Fatalf("SaveOrders: %v", err)
	}
	if len(got) != 2 || len(body) != 2 || body[0].WebsiteID != 2 {
		t.Fatalf("got=%+v body=%+v", got, body)
	}
	if _, ok := f.cache.MyWebsites(ctx); ok {
		t.Fatal("my websites cache survived reorder")
	}
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
	all  int
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func (r *recordingInvalidator) ClearAll(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all++
}

func TestMutationsGoThroughInvalidator(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/websites/":
			writeJSON(w, http.StatusOK, models.Website{ID: 7, Name: "New"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		}
	}))
	t.Cleanup(srv.Close)

	inv := &recordingInvalidator{}
	sessions := session.New(storage.NewMemory())
	client := New(srv.URL, sessions, WithInvalidator(inv))
	ctx := context.Background()
	tok := models.Token{AccessToken: "tok", TokenType: "bearer"}
	if err := sessions.Save(ctx, tok, &models.User{ID: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}

	name := "New"
	if _, err := client.CreateWebsite(ctx, models.WebsiteInput{Name: &name}); err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}
	if len(inv.keys) != len(cache.WebsiteKeys) || inv.keys[0] != cache.WebsitesKey {
		t.Fatalf("invalidated = %v", inv.keys)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if inv.all != 1 {
		t.Fatalf("ClearAll calls = %d, want 1", inv.all)
	}
}

func TestLookupUserPrefersListedUsers(t *testing.T) {
	t.Parallel()
	var gets atomic.Int32
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/":
			writeJSON(w, http.StatusOK, []models.User{{ID: 1, Username: "admin"}, {ID: 2, Username: "bob"}})
		case "/users/3":
			gets.Add(1)
			writeJSON(w, http.StatusOK, models.User{ID: 3, Username: "carol"})
		default:
			http.NotFound(w, r)
		}
	}))
	f.login(t)
	ctx := context.Background()

	if _, err := f.client.ListUsers(ctx); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	u, err := f.client.LookupUser(ctx, 1)
	if err != nil || !u.IsBuiltinAdmin() {
		t.Fatalf("LookupUser(1) = %+v, %v", u, err)
	}
	if err := f.client.DeleteUser(ctx, u); !errors.Is(err, ErrProtectedAdmin) {
		t.Fatalf("DeleteUser err = %v", err)
	}

	u, err = f.client.LookupUser(ctx, 3)
	if err != nil || u.Username != "carol" || gets.Load() != 1 {
		t.Fatalf("LookupUser(3) = %+v, %v, gets=%d", u, err, gets.Load())
	}
}

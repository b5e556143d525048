// Package settings holds the user-editable portal options, currently the
// remote API base URL, in the "sync" area of local storage.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"navportal/pkg/storage"
)

const KeyAPIURL = "sync:apiUrl"

var ErrInvalidURL = errors.New("invalid api url")

type Settings struct {
	store      storage.Store
	defaultURL string
}

func New(store storage.Store, defaultURL string) *Settings {
	return &Settings{store: store, defaultURL: Normalize(defaultURL)}
}

// Normalize strips trailing slashes so paths can be appended verbatim.
func Normalize(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func Validate(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w %q: missing host", ErrInvalidURL, raw)
	}
	return nil
}

func (s *Settings) Default() string {
	return s.defaultURL
}

func (s *Settings) APIURL(ctx context.Context) string {
	var v string
	ok, err := storage.GetJSON(ctx, s.store, KeyAPIURL, &v)
	if err != nil {
		log.Printf("[SETTINGS] read api url: %v", err)
	}
	if !ok || v == "" {
		return s.defaultURL
	}
	return Normalize(v)
}

func (s *Settings) SetAPIURL(ctx context.Context, raw string) (string, error) {
	if err := Validate(raw); err != nil {
		return "", err
	}
	u := Normalize(raw)
	if err := storage.SetJSON(ctx, s.store, KeyAPIURL, u); err != nil {
		return "", fmt.Errorf("save api url: %w", err)
	}
	return u, nil
}

func (s *Settings) Reset(ctx context.Context) (string, error) {
	if err := storage.SetJSON(ctx, s.store, KeyAPIURL, s.defaultURL); err != nil {
		return "", fmt.Errorf("reset api url: %w", err)
	}
	return s.defaultURL, nil
}

// Watch calls fn with the effective API URL whenever the stored value
// changes, whichever process changed it.
func (s *Settings) Watch(ctx context.Context, fn func(apiURL string)) func() {
	return s.store.Watch(func(c storage.Change) {
		if c.Key != KeyAPIURL {
			return
		}
		u := s.APIURL(ctx)
		log.Printf("[SETTINGS] Setting %q changed to %q", "apiUrl", u)
		fn(u)
	})
}

func (s *Settings) Snapshot(ctx context.Context) map[string]string {
	return map[string]string{"api_url": s.APIURL(ctx), "default_api_url": s.defaultURL}
}

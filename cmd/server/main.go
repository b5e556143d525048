package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"navportal/pkg/api"
	"navportal/pkg/cache"
	"navportal/pkg/config"
	"navportal/pkg/handlers"
	"navportal/pkg/hub"
	"navportal/pkg/portal"
	"navportal/pkg/reorder"
	"navportal/pkg/server"
	"navportal/pkg/session"
	"navportal/pkg/settings"
	"navportal/pkg/storage"
	"navportal/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[PORTAL] %v", err)
	}
	log.Printf("[PORTAL] %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[PORTAL] Opening %s storage...", cfg.StorageDriver)
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		log.Fatalf("[PORTAL] storage: %v", err)
	}
	defer store.Close()

	var sessionOpts []session.Option
	if key, _ := cfg.SealKey(); key != nil {
		sealer, err := session.NewSealer(key)
		if err != nil {
			log.Fatalf("[PORTAL] storage key: %v", err)
		}
		sessionOpts = append(sessionOpts, session.WithSealer(sealer))
		log.Println("[PORTAL] Tokens are sealed at rest")
	}
	sessions := session.New(store, sessionOpts...)
	pageCache := cache.New(store, cache.WithTTL(cfg.CacheTTL))
	prefs := settings.New(store, cfg.APIURL)
	wsHub := hub.New()

	loader := portal.NewLoader(pageCache,
		portal.WithToaster(wsHub),
		portal.WithRefreshTimeout(cfg.RequestTimeout),
	)
	loader.OnUpdate(wsHub.Refresh)

	var v *validator.Validator
	client := api.New(prefs.APIURL(ctx), sessions,
		api.WithCache(pageCache),
		api.WithInvalidator(loader),
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithUnauthorizedHook(func(to string) {
			v.MarkUnauthenticated()
			wsHub.Redirect(to)
		}),
	)
	unwatch := prefs.Watch(ctx, client.SetBaseURL)
	defer unwatch()

	v = validator.New(sessions, loader, client, wsHub, validator.Config{
		Interval:      cfg.ValidateInterval,
		RedirectDelay: cfg.RedirectDelay,
		Timeout:       cfg.RequestTimeout,
	})

	h, err := handlers.New(handlers.Deps{
		API:       client,
		Sessions:  sessions,
		Portal:    portal.New(client, sessions, loader),
		Reorder:   reorder.NewController(client, loader, wsHub),
		Validator: v,
		Settings:  prefs,
		Hub:       wsHub,
		Timeout:   cfg.RequestTimeout,
		LoginRate: cfg.LoginRate,
	})
	if err != nil {
		log.Fatalf("[PORTAL] templates: %v", err)
	}
	h.RegisterActions()

	app := server.NewApp("navportal", cfg.Origins())
	app.Get("/hub/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"clients": wsHub.ClientCount(),
			"session": v.State().String(),
		})
	})
	h.Register(app)

	v.Start(ctx)

	go func() {
		<-ctx.Done()
		log.Println("[PORTAL] Shutting down...")
		v.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("[PORTAL] shutdown: %v", err)
		}
	}()

	log.Printf("[PORTAL] Remote API: %s", client.BaseURL())
	log.Printf("[PORTAL] WebSocket: ws://<host>/ws")
	log.Printf("[PORTAL] Server starting on %s", cfg.Addr())

	if err := app.Listen(cfg.Addr()); err != nil {
		log.Printf("[PORTAL] Failed to start: %v", err)
	}
	loader.Wait()
}

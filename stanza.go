// Package stanza is a Markdown blog compiler and preview server. A site
// is a tree of Markdown posts with YAML front matter organized by year;
// stanza loads it, lints it, compiles it to a static HTML tree, and can
// serve it locally with session-gated draft preview and privacy-first
// analytics while writing.
//
// The Markdown files are the source of truth. The SQLite index, the post
// cache, and the build output are all derived from the tree and rebuilt
// from it.
package stanza

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/merenth/stanza/analytics"
)

// ViewFuncs holds the templ components the preview server and the builder
// call when rendering pages. The views package provides a default set; a
// site can substitute its own.
type ViewFuncs struct {
	Home        func(posts []Post, activeTag string, tags []string) templ.Component
	Post        func(post Post, related []Post) templ.Component
	Tag         func(tag string, posts []Post) templ.Component
	Drafts      func(posts []Post, csrfToken string) templ.Component
	Login       func(showError bool, csrfToken string) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App is the preview server. It wires together the content tree, the
// derived index, the cache, handlers, middleware, and the views.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *PostCache
	Views  ViewFuncs

	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	customRoutes   []func(*App)
	openDrafts     bool
	watch          bool
	stopWatch      func()
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the index, syncs it from the content tree, sets up
// middleware and routes, and starts the server. It blocks until the
// server shuts down.
func (a *App) Start() error {
	if a.Config.AuthorPassword != "" && a.Config.SessionSecret == "" {
		return fmt.Errorf("stanza: session secret is required when an author password is set")
	}
	if a.Config.SessionSecret == "" {
		// Preview without draft login still mounts the session middleware;
		// an ephemeral secret is fine since nothing outlives the process.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("stanza: generate session secret: %w", err)
		}
		a.Config.SessionSecret = hex.EncodeToString(b)
	}

	store, err := NewStore(a.Config.IndexPath)
	if err != nil {
		return fmt.Errorf("stanza: init index: %w", err)
	}
	a.Store = store

	if err := a.Sync(); err != nil {
		return err
	}

	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.watch {
		if err := a.WatchContent(); err != nil {
			return fmt.Errorf("stanza: watch content: %w", err)
		}
	}

	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("stanza: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("stanza: init analytics salt: %w", err)
		}
		stopCleanup := analyticsStore.StartCleanupScheduler(365, 24*time.Hour)
		defer stopCleanup()
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Sync reloads the content tree into the index and invalidates the cache.
// The watcher calls this on file changes.
func (a *App) Sync() error {
	posts, err := LoadTree(a.Config.ContentDir)
	if err != nil {
		return err
	}
	if err := a.Store.SyncPosts(posts); err != nil {
		return fmt.Errorf("stanza: sync index: %w", err)
	}
	if a.Cache != nil {
		a.Cache.Invalidate()
	}
	return nil
}

// WatchContent starts a filesystem watcher on the content tree that
// resyncs the index on changes. Call the App's Close to stop it.
func (a *App) WatchContent() error {
	stop, err := WatchTree(a.Config.ContentDir, 300*time.Millisecond, func() {
		if err := a.Sync(); err != nil {
			a.Echo.Logger.Errorf("resync after change: %v", err)
			return
		}
		a.Echo.Logger.Infof("content tree changed, index resynced")
	})
	if err != nil {
		return err
	}
	a.stopWatch = stop
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/:slug/", a.handlePost)
	e.GET("/tags/:tag/", a.handleTag)

	// Draft preview, session-gated unless opened explicitly.
	e.GET("/drafts/", a.handleDrafts)
	e.POST("/drafts/login/", a.handleDraftLogin)
	e.POST("/drafts/logout/", handleDraftLogout)
	e.GET("/drafts/:slug/", a.handleDraftPost)

	if a.Config.AnalyticsEnabled && a.analyticsStore != nil {
		handler := analytics.NewHandler(a.analyticsStore)
		authMiddleware := func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if !a.draftAccess(c) {
					return c.NoContent(http.StatusForbidden)
				}
				return next(c)
			}
		}
		handler.RegisterRoutes(e, authMiddleware)
	}
}

// draftAccess reports whether the request may see drafts and stats.
func (a *App) draftAccess(c echo.Context) bool {
	return a.openDrafts || IsAuthor(c)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.analyticsStore != nil {
		a.analyticsStore.Close()
	}
	return nil
}

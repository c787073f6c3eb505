package stanza

import "time"

// SiteConfig holds all configuration for a stanza site. It is populated
// from stanza.yml, STANZA_* environment variables, and CLI flags.
type SiteConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // Site name (default "Blog")
	URL         string `yaml:"url" mapstructure:"url"`                 // Canonical base URL
	Description string `yaml:"description" mapstructure:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author" mapstructure:"author"`           // Author name for JSON-LD

	ContentDir string `yaml:"content" mapstructure:"content"` // Markdown tree (default "content")
	StaticDir  string `yaml:"static" mapstructure:"static"`   // Static assets (default "public")
	OutputDir  string `yaml:"output" mapstructure:"output"`   // Build output (default "dist")
	Minify     bool   `yaml:"minify" mapstructure:"minify"`   // Minify generated HTML/XML

	Addr      string `yaml:"addr" mapstructure:"addr"`           // Preview server listen address (default ":3000")
	IndexPath string `yaml:"index_db" mapstructure:"index_db"`   // SQLite index path (default "data/index.db")

	AnalyticsEnabled      bool   `yaml:"analytics" mapstructure:"analytics"`
	AnalyticsDatabasePath string `yaml:"analytics_db" mapstructure:"analytics_db"`

	// Secrets come from the environment only, never from stanza.yml.
	AuthorPassword string `yaml:"-" mapstructure:"author_password"` // gates draft preview
	SessionSecret  string `yaml:"-" mapstructure:"session_secret"`
	CookieSecure   bool   `yaml:"cookie_secure" mapstructure:"cookie_secure"`

	PostCacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"` // preview cache TTL (default 5min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.ContentDir == "" {
		c.ContentDir = "content"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.OutputDir == "" {
		c.OutputDir = "dist"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.IndexPath == "" {
		c.IndexPath = "data/index.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithDrafts makes the preview server list and render drafts without a
// session, the way `serve --drafts` exposes them on a trusted machine.
func WithDrafts() Option {
	return func(a *App) {
		a.openDrafts = true
	}
}

// WithWatch makes Start watch the content tree and resync the index
// when Markdown files change.
func WithWatch() Option {
	return func(a *App) {
		a.watch = true
	}
}

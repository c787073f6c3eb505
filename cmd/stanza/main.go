// Package main provides the stanza command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--base-url, --minify, ...)
//  2. STANZA_* environment variables (STANZA_URL, STANZA_AUTHOR_PASSWORD, ...)
//  3. stanza.yml in the site root
//
// Secrets (author password, session secret) are only read from the
// environment, never from stanza.yml.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/merenth/stanza"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stanza",
	Short: "A Markdown blog compiler and preview server",
	Long: `Stanza compiles a tree of Markdown posts with YAML front matter into
a static HTML site, and serves it locally while you write.

Quick start:
  stanza new "My first post"   Scaffold a post under content/<year>/
  stanza lint                  Check the content tree
  stanza serve --watch         Preview with live index resync
  stanza build --minify        Compile the site into the output dir`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default stanza.yml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STANZA_CONFIG"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("stanza")
	}

	viper.SetEnvPrefix("STANZA")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config files are fine; defaults and env vars carry a site.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadSiteConfig resolves the effective site configuration from viper.
func loadSiteConfig() (stanza.SiteConfig, error) {
	viper.SetDefault("name", "Blog")
	viper.SetDefault("url", "http://localhost:3000")
	viper.SetDefault("content", "content")
	viper.SetDefault("static", "public")
	viper.SetDefault("output", "dist")
	viper.SetDefault("addr", ":3000")
	viper.SetDefault("index_db", "data/index.db")
	viper.SetDefault("analytics_db", "data/analytics.db")
	viper.SetDefault("cache_ttl", "5m")
	viper.SetDefault("analytics", false)
	viper.SetDefault("cookie_secure", false)

	// Env-only keys need a registered default for AutomaticEnv to pick
	// them up during Unmarshal.
	viper.SetDefault("author_password", "")
	viper.SetDefault("session_secret", "")

	var cfg stanza.SiteConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return stanza.SiteConfig{}, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

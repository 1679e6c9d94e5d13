// Command catalog-watch follows the catalog change-notification feed and
// pages through catalog collections from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the connection settings shared by every subcommand.
type options struct {
	baseURL   string
	token     string
	redisURL  string
	userAgent string
	logLevel  string
	pretty    bool
	rateLimit float64
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "catalog-watch",
		Short:        "Catalog change-notification and paging tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			cfg := logging.DefaultConfig()
			cfg.Level = level
			cfg.Pretty = opts.pretty
			cfg.Output = cmd.ErrOrStderr()
			logging.Setup(cfg)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.baseURL, "base-url", getEnv("CATALOG_BASE_URL", ""), "catalog API root URL")
	f.StringVar(&opts.token, "token", getEnv("CATALOG_TOKEN", ""), "bearer token for catalog requests")
	f.StringVar(&opts.redisURL, "redis-url", getEnv("REDIS_URL", ""), "redis address or redis:// URL for the response cache (empty disables caching)")
	f.StringVar(&opts.userAgent, "user-agent", getEnv("USER_AGENT", "catalog-watch/0.1.0"), "User-Agent header")
	f.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	f.BoolVar(&opts.pretty, "pretty", false, "human-readable log output")
	f.Float64Var(&opts.rateLimit, "rate-limit", 10, "maximum requests per second (0 disables pacing)")

	root.AddCommand(newWatchCommand(opts))
	root.AddCommand(newPagesCommand(opts))
	return root
}

// newClient builds the catalog client. The returned cleanup closes the
// client and its redis connection.
func (o *options) newClient(ctx context.Context) (*client.Client, func(), error) {
	cfg := client.DefaultConfig(o.baseURL, o.userAgent)
	cfg.RateLimit = o.rateLimit
	if o.token != "" {
		cfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: o.token,
			TokenType:   "Bearer",
		})
	}

	var rdb *redis.Client
	if o.redisURL != "" {
		opts, err := redisOptions(o.redisURL)
		if err != nil {
			return nil, nil, err
		}
		rdb = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		cfg.Redis = rdb
	}

	c, err := client.New(cfg)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		c.Close()
		if rdb != nil {
			rdb.Close()
		}
	}
	return c, cleanup, nil
}

// redisOptions accepts a plain host:port or a redis:// URL.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

// splitPairs parses repeated name=value flags.
func splitPairs(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("--%s %q: want name=value", flag, pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

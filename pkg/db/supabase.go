package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"podcast-search/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds configuration required to connect to a Supabase project.
type SupabaseConfig struct {
	// ConnectionString is the Supabase Postgres connection string.
	// If not provided, will be constructed from SupabaseURL and Password.
	ConnectionString string

	// SupabaseURL is the project URL, e.g. "https://[project-ref].supabase.co".
	SupabaseURL string

	// SupabaseKey is the API key used for REST access.
	SupabaseKey string

	// Password is the database password, not the API key.
	Password string

	Pool PoolConfig
}

// SupabaseClient provides a direct Postgres handle for the search store and
// REST access to the episodes table.
type SupabaseClient struct {
	db          *sql.DB
	supabaseSDK *supabase.Client
	cfg         SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the SDK client and, when credentials allow it, the
// direct database connection. With only URL and key it runs in REST mode.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL != "" && c.cfg.SupabaseKey != "" {
		sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.supabaseSDK = sdkClient
	}

	connStr := c.cfg.ConnectionString
	if connStr == "" && c.cfg.Password != "" {
		var err error
		connStr, err = buildConnectionString(c.cfg.SupabaseURL, c.cfg.Password)
		if err != nil {
			if c.supabaseSDK != nil {
				return nil // REST mode only
			}
			return fmt.Errorf("build connection string: %w", err)
		}
	}

	if connStr != "" {
		// Parallel term searches share the pool; prepared statement caching
		// conflicts with the Supabase pooler.
		connStr = addConnectionParam(connStr, "statement_cache_capacity", "0")
		connStr = addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")

		db, err := openPgx(ctx, connStr, c.cfg.Pool)
		if err != nil {
			if c.supabaseSDK != nil {
				return nil // REST mode only
			}
			return fmt.Errorf("supabase postgres: %w", err)
		}
		c.db = db
	}

	if c.db == nil && c.supabaseSDK == nil {
		return fmt.Errorf("either connection string/password or Supabase URL+key must be provided")
	}

	return nil
}

// Close closes the database connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying sql.DB handle. Returns nil in REST mode.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB returns true if direct database connection is available.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// ListTranscribed reads transcribed episodes from the episodes table through
// the REST API, ordered by publication date.
func (c *SupabaseClient) ListTranscribed(ctx context.Context) ([]domain.Episode, error) {
	if c.supabaseSDK == nil {
		return nil, fmt.Errorf("supabase SDK not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var episodes []domain.Episode
	_, err := c.supabaseSDK.From("episodes").
		Select("eid,title,audio_url,pub_date,duration,transcribed", "", false).
		Eq("transcribed", "true").
		ExecuteTo(&episodes)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PubDate.Before(episodes[j].PubDate)
	})
	return episodes, nil
}

// buildConnectionString constructs a Supabase Postgres connection string from URL and password.
func buildConnectionString(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", fmt.Errorf("supabase URL is required when connection string is not provided")
	}
	if password == "" {
		return "", fmt.Errorf("supabase password is required when connection string is not provided")
	}

	parsedURL, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}

	// "abcd.supabase.co" -> "abcd"
	parts := strings.Split(parsedURL.Host, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid supabase URL format: expected [project-ref].supabase.co")
	}
	projectRef := parts[0]

	connStr := fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require",
		url.QueryEscape(password), projectRef)

	return connStr, nil
}

// addConnectionParam adds a query parameter to the connection string if not already present.
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}

	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}

	return connStr + separator + key + "=" + value
}

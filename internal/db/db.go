package db

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gamelogsTOP/dotserver/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	dsn = dsnWithConnectTimeout(dsn, cfg.DialTimeout)

	// TranslateError maps driver unique-violation errors to
	// gorm.ErrDuplicatedKey, which the merger relies on to spot the
	// identity-key backstop firing.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables.
	if err := db.AutoMigrate(&Event{}, &User{}); err != nil {
		return nil, err
	}

	return db, nil
}

// dsnWithConnectTimeout stamps connect_timeout (whole seconds, minimum 1)
// onto the URL so dialing a hung server fails instead of blocking. An
// explicit connect_timeout in the URL wins.
func dsnWithConnectTimeout(dsn string, d time.Duration) string {
	if d <= 0 {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	if q.Get("connect_timeout") != "" {
		return dsn
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	q.Set("connect_timeout", strconv.Itoa(secs))
	u.RawQuery = q.Encode()
	return u.String()
}

// opCtx bounds a store operation. The stores never issue a statement on a
// deadline-less context (fasthttp request contexts carry none), so a hung
// connection surfaces as context.DeadlineExceeded rather than a stalled
// request. A non-positive timeout leaves ctx untouched.
func opCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

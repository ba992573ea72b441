package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "speechspy/pkg/logx"
)

// Store is the minimal persistence API used by the settings store and the audit trail.
type Store interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	PutSetting(ctx context.Context, key, value string) error
	Settings(ctx context.Context) (map[string]string, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	// PruneAudit deletes audit entries older than before and reports how many were removed.
	PruneAudit(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "memory":
		return openMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// ValidDriver reports whether Open understands driver.
func ValidDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "none", "memory", "file", "sqlite", "sqlite3":
		return true
	default:
		return false
	}
}

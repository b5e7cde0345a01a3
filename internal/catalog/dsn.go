package catalog

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Default busy_timeout in milliseconds for SQLite snapshots (30 seconds)
const DefaultBusyTimeout = 30000

// EnvBusyTimeout overrides the SQLite busy_timeout
const EnvBusyTimeout = "ICATCHECK_BUSY_TIMEOUT"

// GetBusyTimeout returns the busy_timeout value for SQLite snapshots.
// Priority: env > configured value > default
func GetBusyTimeout(configured int) int {
	if val := os.Getenv(EnvBusyTimeout); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			return timeout
		}
	}
	if configured > 0 {
		return configured
	}
	return DefaultBusyTimeout
}

// BuildSQLiteDSN builds the libsql DSN for a catalog snapshot file.
// libsql ignores pragma parameters in the DSN, see applyReadOnlyPragmas.
func BuildSQLiteDSN(path string) string {
	return "file:" + path
}

// PostgresDSN returns the connection string for cfg. An explicit DSN wins
// over the individual fields.
func (cfg Config) PostgresDSN() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host,
		Path:   "/" + cfg.Name,
	}
	if cfg.Port > 0 {
		u.Host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("application_name", "icatcheck")
	u.RawQuery = q.Encode()
	return u.String()
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyReadOnlyPragmas prepares a libsql connection for auditing: wait on
// locks held by whoever is producing the snapshot, and refuse any write.
func applyReadOnlyPragmas(db *sql.DB, busyTimeout int) error {
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout(busyTimeout))); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if err := execPragma(db, "PRAGMA query_only = 1"); err != nil {
		return fmt.Errorf("failed to set query_only: %w", err)
	}
	return nil
}

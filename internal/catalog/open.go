// Copyright 2024 icatcheck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"icatcheck/internal/common"
)

// Supported catalog drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes how to reach the catalog.
type Config struct {
	Driver string

	// PostgreSQL. DSN, when set, is used verbatim.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// SQLite snapshot of the catalog
	SQLitePath  string
	BusyTimeout int
}

// DB is a read-only handle on the catalog.
// It holds a single connection and is not meant for concurrent use.
type DB struct {
	*bun.DB
}

// Open connects to the catalog and verifies the connection. Any failure is a
// CatalogUnavailable error; there is no retry.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var bunDB *bun.DB

	switch cfg.Driver {
	case DriverPostgres:
		sqlDB, err := sql.Open("pgx", cfg.PostgresDSN())
		if err != nil {
			return nil, common.CatalogUnavailable.Wrap(err)
		}
		sqlDB.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqlDB, pgdialect.New())

	case DriverSQLite:
		if _, err := os.Stat(cfg.SQLitePath); err != nil {
			return nil, common.CatalogUnavailable.New("catalog snapshot %s: %v", cfg.SQLitePath, err)
		}
		sqlDB, err := sql.Open("libsql", BuildSQLiteDSN(cfg.SQLitePath))
		if err != nil {
			return nil, common.CatalogUnavailable.Wrap(err)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := applyReadOnlyPragmas(sqlDB, cfg.BusyTimeout); err != nil {
			sqlDB.Close()
			return nil, common.CatalogUnavailable.Wrap(err)
		}
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())

	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedDriver, cfg.Driver)
	}

	if err := bunDB.PingContext(ctx); err != nil {
		bunDB.Close()
		return nil, common.CatalogUnavailable.Wrap(err)
	}

	if bunDB.Dialect().Name() == dialect.PG {
		if _, err := bunDB.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"); err != nil {
			bunDB.Close()
			return nil, common.CatalogUnavailable.Wrap(err)
		}
	}

	log.WithField("driver", cfg.Driver).Debug("[Catalog] connection established")
	return &DB{DB: bunDB}, nil
}

// IsPostgres reports whether the catalog is served by PostgreSQL.
func (db *DB) IsPostgres() bool {
	return db.Dialect().Name() == dialect.PG
}

// Package catalogtest builds small ICAT-shaped SQLite catalogs for tests.
//
// A Fixture owns a writable connection to a fresh database file under
// t.TempDir(). Rows are inserted immediately; Open returns the read-only
// handle the code under test uses. Columns a test does not set fall back to
// the schema defaults, so a default row never trips a check by accident.
package catalogtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "github.com/tursodatabase/go-libsql"

	"icatcheck/internal/catalog"
)

// DefaultTs is the create_ts/modify_ts given to rows that do not set one.
const DefaultTs = "01700000000"

// Default names created by New.
const (
	Zone     = "tempZone"
	ZonePath = "/" + Zone
	HomePath = ZonePath + "/home"
	User     = "rods"
)

const schema = `
CREATE TABLE r_zone_main (
    zone_id INTEGER NOT NULL,
    zone_name TEXT DEFAULT '',
    zone_type_name TEXT NOT NULL DEFAULT 'local',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_coll_main (
    coll_id INTEGER NOT NULL,
    parent_coll_name TEXT NOT NULL DEFAULT '/',
    coll_name TEXT NOT NULL DEFAULT '',
    coll_owner_name TEXT NOT NULL DEFAULT 'rods',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_data_main (
    data_id INTEGER NOT NULL,
    coll_id INTEGER NOT NULL,
    data_name TEXT NOT NULL DEFAULT '',
    data_repl_num INTEGER NOT NULL DEFAULT 0,
    resc_id INTEGER NOT NULL DEFAULT 0,
    data_path TEXT NOT NULL DEFAULT '',
    data_size INTEGER NOT NULL DEFAULT 0,
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_resc_main (
    resc_id INTEGER NOT NULL,
    resc_name TEXT NOT NULL DEFAULT '',
    zone_name TEXT NOT NULL DEFAULT 'tempZone',
    resc_type_name TEXT NOT NULL DEFAULT 'unixfilesystem',
    resc_net TEXT NOT NULL DEFAULT 'localhost',
    resc_def_path TEXT NOT NULL DEFAULT '',
    resc_parent TEXT DEFAULT '',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_user_main (
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL DEFAULT '',
    user_type_name TEXT NOT NULL DEFAULT 'rodsuser',
    zone_name TEXT NOT NULL DEFAULT 'tempZone',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_objt_access (
    object_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    access_type_id INTEGER NOT NULL DEFAULT 1200,
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_objt_metamap (
    object_id INTEGER NOT NULL,
    meta_id INTEGER NOT NULL,
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_meta_main (
    meta_id INTEGER NOT NULL,
    meta_attr_name TEXT NOT NULL DEFAULT '',
    meta_attr_value TEXT NOT NULL DEFAULT '',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_quota_main (
    user_id INTEGER,
    resc_id INTEGER,
    quota_limit INTEGER DEFAULT 0,
    quota_over INTEGER DEFAULT 0,
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_quota_usage (
    user_id INTEGER,
    resc_id INTEGER,
    quota_usage INTEGER DEFAULT 0,
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_user_password (
    user_id INTEGER NOT NULL,
    rcat_password TEXT NOT NULL DEFAULT '',
    pass_expiry_ts TEXT NOT NULL DEFAULT '',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);

CREATE TABLE r_rule_main (
    rule_id INTEGER NOT NULL,
    rule_base_name TEXT NOT NULL DEFAULT 'core',
    rule_name TEXT NOT NULL DEFAULT '',
    create_ts TEXT DEFAULT '01700000000',
    modify_ts TEXT DEFAULT '01700000000'
);
`

// Fixture is a writable ICAT catalog on disk.
type Fixture struct {
	t      testing.TB
	Path   string
	db     *sql.DB
	nextID int64
	colls  map[string]int64

	// UserID is the id of the default rods user.
	UserID int64
}

// New creates a catalog holding the zone, the collections "/", "/<zone>" and
// "/<zone>/home", and one user. Such a catalog passes every check.
func New(t testing.TB) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icat.db")
	db, err := sql.Open("libsql", catalog.BuildSQLiteDSN(path))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, execStatements(db, schema))

	f := &Fixture{t: t, Path: path, db: db, nextID: 10000, colls: map[string]int64{}}
	f.Insert(catalog.TableZones, map[string]any{"zone_id": f.NextID(), "zone_name": Zone})
	f.Collection("/")
	f.Collection(ZonePath)
	f.Collection(HomePath)
	f.UserID = f.NextID()
	f.Insert(catalog.TableUsers, map[string]any{"user_id": f.UserID, "user_name": User, "user_type_name": "rodsadmin"})
	return f
}

// NextID hands out ids from one sequence, as the catalog does.
func (f *Fixture) NextID() int64 {
	f.nextID++
	return f.nextID
}

// Exec runs a raw statement.
func (f *Fixture) Exec(query string, args ...any) {
	f.t.Helper()
	_, err := f.db.Exec(query, args...)
	require.NoError(f.t, err, query)
}

// Insert adds one row to table. Columns are written in sorted order.
func (f *Fixture) Insert(table string, values map[string]any) {
	f.t.Helper()
	require.True(f.t, catalog.ValidIdentifier(table), table)
	cols := make([]string, 0, len(values))
	for c := range values {
		require.True(f.t, catalog.ValidIdentifier(c), c)
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	f.Exec(query, args...)
}

// Collection inserts a collection and returns its id. The parent name is
// derived from name; "/" is its own parent.
func (f *Fixture) Collection(name string) int64 {
	f.t.Helper()
	parent := "/"
	if i := strings.LastIndex(name, "/"); i > 0 {
		parent = name[:i]
	}
	id := f.NextID()
	f.Insert(catalog.TableCollections, map[string]any{
		"coll_id":          id,
		"coll_name":        name,
		"parent_coll_name": parent,
	})
	f.colls[name] = id
	return id
}

// CollectionID returns the id of a collection created by this fixture.
func (f *Fixture) CollectionID(name string) int64 {
	f.t.Helper()
	id, ok := f.colls[name]
	require.True(f.t, ok, "no collection %s", name)
	return id
}

// Collections creates name and every missing ancestor and returns the id of
// name.
func (f *Fixture) Collections(name string) int64 {
	f.t.Helper()
	parts := strings.Split(strings.Trim(name, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		if _, ok := f.colls[cur]; !ok {
			f.Collection(cur)
		}
	}
	return f.colls[cur]
}

// Resource describes a resource row.
type Resource struct {
	Name   string
	Type   string // default unixfilesystem
	Host   string // default localhost
	Vault  string
	Parent string // text id of the parent, "" for a root resource
}

// Resource inserts r and returns its id.
func (f *Fixture) Resource(r Resource) int64 {
	f.t.Helper()
	id := f.NextID()
	values := map[string]any{
		"resc_id":       id,
		"resc_name":     r.Name,
		"resc_def_path": r.Vault,
		"resc_parent":   r.Parent,
	}
	if r.Type != "" {
		values["resc_type_name"] = r.Type
	}
	if r.Host != "" {
		values["resc_net"] = r.Host
	}
	f.Insert(catalog.TableResources, values)
	return id
}

// DataObject inserts the first replica of a new data object and returns its id.
func (f *Fixture) DataObject(collID, rescID int64, name, physicalPath string) int64 {
	f.t.Helper()
	id := f.NextID()
	f.Replica(id, collID, rescID, name, physicalPath)
	return id
}

// Replica inserts a replica row for an existing data object id. Replica
// numbers count up per id.
func (f *Fixture) Replica(dataID, collID, rescID int64, name, physicalPath string) {
	f.t.Helper()
	var n int64
	err := f.db.QueryRow("SELECT COUNT(*) FROM r_data_main WHERE data_id = ?", dataID).Scan(&n)
	require.NoError(f.t, err)
	f.Insert(catalog.TableDataObjects, map[string]any{
		"data_id":       dataID,
		"coll_id":       collID,
		"data_name":     name,
		"data_repl_num": n,
		"resc_id":       rescID,
		"data_path":     physicalPath,
	})
}

// Open returns the read-only catalog handle for this fixture. It is closed
// when the test ends.
func (f *Fixture) Open() *catalog.DB {
	f.t.Helper()
	db, err := catalog.Open(context.Background(), catalog.Config{
		Driver:     catalog.DriverSQLite,
		SQLitePath: f.Path,
	})
	require.NoError(f.t, err)
	f.t.Cleanup(func() { db.Close() })
	return db
}

// execStatements executes multiple SQL statements separated by semicolons.
func execStatements(db *sql.DB, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: %s", err, stmt)
		}
	}
	return nil
}

// splitStatements splits a SQL script into individual statements
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

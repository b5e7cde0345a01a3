package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"icatcheck/internal/catalog"
	"icatcheck/internal/common"
)

// Environment variables that bypass server_config.json.
const (
	EnvDSN    = "ICATCHECK_DSN"
	EnvSQLite = "ICATCHECK_SQLITE"
)

// DatabaseConfig is the database section of server_config.json in its
// iRODS 5 form.
type DatabaseConfig struct {
	Technology string
	Host       string
	Port       int
	Name       string
	Username   string
	Password   string
}

// ServerConfig is the part of server_config.json icatcheck reads.
type ServerConfig struct {
	// ProviderHost is the catalog provider: icat_host, or the first entry
	// of catalog_provider_hosts on servers that no longer have it.
	ProviderHost string
	Database     DatabaseConfig
}

type serverConfigFile struct {
	ICATHost             string   `json:"icat_host"`
	CatalogProviderHosts []string `json:"catalog_provider_hosts"`
	PluginConfiguration  struct {
		Database map[string]json.RawMessage `json:"database"`
	} `json:"plugin_configuration"`
}

// ReadServerConfig parses the iRODS server configuration at path.
func ReadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseServerConfig(data)
}

// ParseServerConfig parses server_config.json contents. The iRODS 4 layout
// keeps the settings under database.postgres with db_ prefixed keys; it is
// translated to the iRODS 5 layout where they sit directly under database.
func ParseServerConfig(data []byte) (*ServerConfig, error) {
	var file serverConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}

	// A config without a database section still names the provider.
	section := file.PluginConfiguration.Database
	values := make(map[string]any)
	if raw, ok := section[catalog.DriverPostgres]; ok {
		var legacy map[string]any
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("parsing database.postgres: %w", err)
		}
		for k, v := range legacy {
			values[strings.TrimPrefix(k, "db_")] = v
		}
		values["technology"] = catalog.DriverPostgres
	} else {
		for k, raw := range section {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("parsing database.%s: %w", k, err)
			}
			values[k] = v
		}
	}

	port, err := intValue(values["port"])
	if err != nil {
		return nil, fmt.Errorf("database port: %w", err)
	}
	cfg := &ServerConfig{
		ProviderHost: file.ICATHost,
		Database: DatabaseConfig{
			Technology: stringValue(values["technology"]),
			Host:       stringValue(values["host"]),
			Port:       port,
			Name:       stringValue(values["name"]),
			Username:   stringValue(values["username"]),
			Password:   stringValue(values["password"]),
		},
	}
	if cfg.ProviderHost == "" && len(file.CatalogProviderHosts) > 0 {
		cfg.ProviderHost = file.CatalogProviderHosts[0]
	}
	return cfg, nil
}

// Catalog converts the database section into a catalog connection config.
func (d DatabaseConfig) Catalog() (catalog.Config, error) {
	if d.Technology == "" {
		return catalog.Config{}, fmt.Errorf("server config has no plugin_configuration.database section")
	}
	if d.Technology != catalog.DriverPostgres {
		return catalog.Config{}, fmt.Errorf("%w: %q", common.ErrUnsupportedDriver, d.Technology)
	}
	return catalog.Config{
		Driver:   catalog.DriverPostgres,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.Username,
		Password: d.Password,
		Name:     d.Name,
	}, nil
}

// Source says where the catalog connection comes from. Empty fields fall
// back to the environment, then to the server config file.
type Source struct {
	ServerConfig string
	DSN          string
	SQLite       string
	BusyTimeout  int
}

// ResolveCatalog picks the catalog connection for src. A SQLite snapshot
// wins over a DSN, and both win over server_config.json.
func ResolveCatalog(src Source) (catalog.Config, error) {
	if src.SQLite == "" {
		src.SQLite = os.Getenv(EnvSQLite)
	}
	if src.DSN == "" {
		src.DSN = os.Getenv(EnvDSN)
	}

	switch {
	case src.SQLite != "":
		log.WithField("path", src.SQLite).Debug("[Config] using SQLite snapshot")
		return catalog.Config{
			Driver:      catalog.DriverSQLite,
			SQLitePath:  src.SQLite,
			BusyTimeout: catalog.GetBusyTimeout(src.BusyTimeout),
		}, nil
	case src.DSN != "":
		log.Debug("[Config] using PostgreSQL DSN")
		return catalog.Config{Driver: catalog.DriverPostgres, DSN: src.DSN}, nil
	}

	path := src.ServerConfig
	if path == "" {
		path = DefaultServerConfig
	}
	sc, err := ReadServerConfig(path)
	if err != nil {
		return catalog.Config{}, err
	}
	log.WithField("path", path).Debug("[Config] using iRODS server config")
	return sc.Database.Catalog()
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// intValue accepts the port as a JSON number or string; both occur in the wild.
func intValue(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(x), nil
	case string:
		if x == "" {
			return 0, nil
		}
		return strconv.Atoi(x)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

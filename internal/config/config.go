package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"icatcheck/internal/artifacts"
	"icatcheck/internal/output"
)

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "ICATCHECK_CONFIG_DIR"

// getConfigDir returns the config directory path.
// Uses ICATCHECK_CONFIG_DIR if set, otherwise defaults to ~/.icatcheck.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".icatcheck")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// GlobalSettingsPath returns the settings file path
func GlobalSettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// DefaultIgnorePath returns the ignore file used when none is configured
func DefaultIgnorePath() string {
	return filepath.Join(getConfigDir(), "ignore")
}

// DefaultLockPath returns the lock file used when none is configured
func DefaultLockPath() string {
	return filepath.Join(getConfigDir(), "icatcheck.lock")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir creates the config directory and writes the default settings
// file unless one is already there.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path := GlobalSettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, artifacts.GlobalSettings, 0600)
}

// Settings holds the tool settings from settings.yaml
type Settings struct {
	LogLevel     string `yaml:"log_level"`     // error, warn, info, debug (default: warn)
	Format       string `yaml:"format"`        // human or csv (default: human)
	ServerConfig string `yaml:"server_config"` // iRODS server_config.json
	MinReplicas  int    `yaml:"min_replicas"`  // minreplicas threshold (default: 1)
	IgnoreFile   string `yaml:"ignore_file"`   // empty = <config dir>/ignore
	LockFile     string `yaml:"lock_file"`     // empty = <config dir>/icatcheck.lock
	BusyTimeout  int    `yaml:"busy_timeout"`  // SQLite busy_timeout (ms), 0 = use default
	ReplResource string `yaml:"repl_resource"` // irepl -R target of fix-script
}

// DefaultServerConfig is where iRODS keeps its server configuration.
const DefaultServerConfig = "/etc/irods/server_config.json"

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// LoadSettings loads ~/.icatcheck/settings.yaml on top of the embedded
// defaults. A missing file yields the defaults.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GlobalSettingsPath())
}

// LoadSettingsFrom is LoadSettings for an explicit path.
func LoadSettingsFrom(path string) (*Settings, error) {
	settings := loadDefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			settings.ApplyDefaults()
			return &settings, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	settings.ApplyDefaults()
	return &settings, nil
}

// ApplyDefaults fills in values left empty by the settings file.
func (s *Settings) ApplyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = log.WarnLevel.String()
	}
	if s.Format == "" {
		s.Format = output.FormatHuman
	}
	if s.ServerConfig == "" {
		s.ServerConfig = DefaultServerConfig
	}
	if s.MinReplicas < 1 {
		s.MinReplicas = 1
	}
	if s.IgnoreFile == "" {
		s.IgnoreFile = DefaultIgnorePath()
	}
	if s.LockFile == "" {
		s.LockFile = DefaultLockPath()
	}
	if s.ReplResource == "" {
		s.ReplResource = "irodsRescRepl"
	}
}

// Validate rejects values no flag could make sense of.
func (s *Settings) Validate() error {
	if s.LogLevel != "" {
		if _, err := log.ParseLevel(s.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	switch strings.ToLower(s.Format) {
	case "", output.FormatHuman, output.FormatCSV:
	default:
		return fmt.Errorf("format: %q", s.Format)
	}
	if s.BusyTimeout < 0 {
		return fmt.Errorf("busy_timeout: negative value %d", s.BusyTimeout)
	}
	return nil
}

// SaveSettings writes settings to ~/.icatcheck/settings.yaml
func SaveSettings(settings *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	header := []byte("# icatcheck settings\n# See: icatcheck --help\n\n")
	return os.WriteFile(GlobalSettingsPath(), append(header, data...), 0600)
}

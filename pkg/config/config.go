package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "ADDONMGR"

// Defaults
const (
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "console"
	DefaultConcurrency = 4
)

// Config represents the addonmgr configuration
type Config struct {
	// Directory where addonmgr stores add-ons and its database
	RootDir string `json:"root_dir"`
	// GitHub token for API access (optional)
	GitHubToken string `json:"github_token,omitempty"`
	// Log level: debug, info, warn or error
	LogLevel string `json:"log_level,omitempty"`
	// Log format: console or json
	LogFormat string `json:"log_format,omitempty"`
	// Maximum number of add-ons updated in parallel
	Concurrency int `json:"concurrency,omitempty"`
}

// envOverrides mirrors Config for environment variables. Empty values leave
// the file configuration untouched.
type envOverrides struct {
	RootDir     string `envconfig:"ROOT_DIR"`
	GitHubToken string `envconfig:"GITHUB_TOKEN"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	Concurrency int    `envconfig:"CONCURRENCY"`
}

// Directories represents the addonmgr directory structure
type Directories struct {
	// Root directory for all addonmgr data
	Root string
	// Directory containing symlinks to executables
	Bin string
	// Directory containing actual binaries
	BinActual string
	// Directory for configuration files
	Config string
	// Directory for database files
	DB string
	// Directory for log files
	Logs string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		RootDir:     filepath.Join(homeDir, "addonmgr"),
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Concurrency: DefaultConcurrency,
	}
}

// GetDirectories returns the directory structure based on the root directory
func (c *Config) GetDirectories() *Directories {
	return &Directories{
		Root:      c.RootDir,
		Bin:       filepath.Join(c.RootDir, "bin"),
		BinActual: filepath.Join(c.RootDir, "bin", "actual"),
		Config:    filepath.Join(c.RootDir, "config"),
		DB:        filepath.Join(c.RootDir, "db"),
		Logs:      filepath.Join(c.RootDir, "logs"),
	}
}

// DatabaseURL returns the libsql URL of the local database
func (c *Config) DatabaseURL() string {
	return "file:" + filepath.Join(c.GetDirectories().DB, "addonmgr.db")
}

// Path returns the location of the configuration file
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "addonmgr", "config.json"), nil
}

// Load loads the configuration file, then applies environment overrides
func Load() (*Config, error) {
	return LoadWithEnvFile("")
}

// LoadWithEnvFile is Load with an optional .env file read before the
// environment. A missing .env file is not an error.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}

	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	return cfg, nil
}

// LoadPersisted loads the configuration file without environment overrides.
// Configuration that is modified and saved back must come from here so
// values set only in the environment are never written to disk.
func LoadPersisted() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func loadFile() (*Config, error) {
	configFile, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if env.RootDir != "" {
		c.RootDir = env.RootDir
	}
	if env.GitHubToken != "" {
		c.GitHubToken = env.GitHubToken
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.LogFormat != "" {
		c.LogFormat = env.LogFormat
	}
	if env.Concurrency > 0 {
		c.Concurrency = env.Concurrency
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.RootDir == "" {
		c.RootDir = def.RootDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
}

// Save saves the configuration to the default location
func (c *Config) Save() error {
	configFile, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureDirectories creates all necessary directories if they don't exist
func (c *Config) EnsureDirectories() error {
	dirs := c.GetDirectories()
	for _, dir := range []string{
		dirs.Root,
		dirs.Bin,
		dirs.BinActual,
		dirs.Config,
		dirs.DB,
		dirs.Logs,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	readmePath := filepath.Join(dirs.Bin, "README.md")
	readmeContent := []byte("# addonmgr binaries\n\nThis directory contains symlinks to installed add-ons.\nDo not modify it by hand; use `addonmgr` to install, update and remove add-ons.\n")

	if err := os.WriteFile(readmePath, readmeContent, 0644); err != nil {
		return fmt.Errorf("failed to create bin README: %w", err)
	}

	return nil
}

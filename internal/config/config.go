// Package config resolves wikisync settings from, in increasing precedence:
// built-in defaults, a YAML file, a .env file, WIKISYNC_* environment
// variables, and finally command-line flags (applied by the CLI).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "WIKISYNC_"

// Defaults.
const (
	DefaultDatabase   = "wiki.db"
	DefaultListenAddr = "127.0.0.1:8080"
	DefaultRetryDelay = 2 * time.Second
	DefaultAPITimeout = 30 * time.Second
	DefaultAuthor     = "wikisync"
	DefaultEnvFile    = ".env"
)

// Config holds every setting a command may need. It is resolved once and
// passed explicitly into components.
type Config struct {
	// Database is the SQLite file holding the wiki.
	Database string `yaml:"database"`

	// BaseURL and APIKey address the wiki API used by the link resolver.
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// ExcludeTags skips pages carrying any of these tags during link resolution.
	ExcludeTags []string `yaml:"exclude_tags"`

	// RetryDelay is the pause before the single retry of a transient API failure.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// APITimeout bounds each request to the wiki API.
	APITimeout time.Duration `yaml:"api_timeout"`

	ListenAddr string `yaml:"listen_addr"`
	ReportPath string `yaml:"report_path"`

	// Author is recorded as edited_by on versions created by imports, syncs
	// and link rewrites.
	Author string `yaml:"author"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:   DefaultDatabase,
		ListenAddr: DefaultListenAddr,
		RetryDelay: DefaultRetryDelay,
		APITimeout: DefaultAPITimeout,
		Author:     DefaultAuthor,
	}
}

// Sources names where Load reads settings from.
type Sources struct {
	// File is a YAML config file. Empty skips it; a named file must exist.
	File string

	// EnvFile is a dotenv file, read only when present.
	EnvFile string

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load resolves the configuration from defaults, the YAML file and the
// environment. Process environment variables win over the dotenv file.
func Load(src Sources) (Config, error) {
	cfg := Default()

	if src.File != "" {
		if err := cfg.mergeFile(src.File); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if src.EnvFile != "" {
		vals, err := godotenv.Read(src.EnvFile)
		switch {
		case err == nil:
			dotenv = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("load env file %s: %w", src.EnvFile, err)
		}
	}

	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(name string) (string, bool) {
		key := EnvPrefix + name
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.mergeEnv(env); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATABASE":    &c.Database,
		"BASE_URL":    &c.BaseURL,
		"API_KEY":     &c.APIKey,
		"LISTEN_ADDR": &c.ListenAddr,
		"REPORT_PATH": &c.ReportPath,
		"AUTHOR":      &c.Author,
	}
	for name, dst := range strs {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	if v, ok := env("EXCLUDE_TAGS"); ok {
		c.ExcludeTags = SplitList(v)
	}
	durations := map[string]*time.Duration{
		"RETRY_DELAY": &c.RetryDelay,
		"API_TIMEOUT": &c.APITimeout,
	}
	for name, dst := range durations {
		v, ok := env(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}
	return nil
}

// Validate rejects settings no command can use.
func (c Config) Validate() error {
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be positive, got %s", c.APITimeout)
	}
	if strings.TrimSpace(c.Author) == "" {
		return errors.New("author must not be empty")
	}
	return nil
}

// SplitList splits a comma-separated list, trimming entries and dropping
// empty ones.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// String renders the configuration with the API key masked.
func (c Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "database: %s\n", c.Database)
	fmt.Fprintf(&sb, "base_url: %s\n", c.BaseURL)
	if c.APIKey != "" {
		sb.WriteString("api_key: ********\n")
	} else {
		sb.WriteString("api_key: (empty)\n")
	}
	fmt.Fprintf(&sb, "exclude_tags: %s\n", strings.Join(c.ExcludeTags, ","))
	fmt.Fprintf(&sb, "retry_delay: %s\n", c.RetryDelay)
	fmt.Fprintf(&sb, "api_timeout: %s\n", c.APITimeout)
	fmt.Fprintf(&sb, "listen_addr: %s\n", c.ListenAddr)
	fmt.Fprintf(&sb, "report_path: %s\n", c.ReportPath)
	fmt.Fprintf(&sb, "author: %s\n", c.Author)
	return sb.String()
}

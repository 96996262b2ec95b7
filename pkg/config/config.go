// Package config loads the YAML settings shared by mangasync and the record
// server. Values come from the file, then MANGASYNC_* environment variables,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = ".mangasync.yml"

type Config struct {
	Upload  UploadConfig  `yaml:"upload"`
	Catalog CatalogConfig `yaml:"catalog"`
	Server  ServerConfig  `yaml:"server"`
}

type UploadConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Threads      int           `yaml:"threads"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Identity     string        `yaml:"identity"`
	Password     string        `yaml:"password"`
	Force        bool          `yaml:"force"`
}

type CatalogConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	TCPAddr       string        `yaml:"tcp_addr"`
	DataDir       string        `yaml:"data_dir"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`
	RequireAuth   bool          `yaml:"require_auth"`
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	JWTTTL        time.Duration `yaml:"jwt_ttl"`
}

// Flags holds command-line values that override the file. Zero values are
// ignored.
type Flags struct {
	Endpoint     string
	Threads      int
	PollInterval time.Duration
	Force        bool
	Addr         string
	TCPAddr      string
	DataDir      string
}

func Default() Config {
	return Config{
		Upload: UploadConfig{
			Endpoint:     "http://127.0.0.1:8090",
			Threads:      4,
			PollInterval: 750 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Endpoint: "https://graphql.anilist.co/",
		},
		Server: ServerConfig{
			Addr:       ":8090",
			TCPAddr:    ":9090",
			DataDir:    "%HOME%/.mangasync/data",
			AdminEmail: "admin@example.com",
			JWTSecret:  "dev-secret-change-me",
			JWTIssuer:  "mangasync",
			JWTTTL:     24 * time.Hour,
		},
	}
}

// DefaultPath returns ~/.mangasync.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine home directory: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// CreateDefault writes the default configuration to path. An existing file
// is left alone and reported as an error.
func CreateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("unable to encode config file: %w", err)
	}
	return enc.Close()
}

// Load reads the config at path. With an empty path the default location is
// used, and a missing default file yields the built-in defaults. A missing
// explicit path is an error.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("unable to decode config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config file does not exist: %s (use init to create it)", path)
	default:
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}

	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	c.Server.DataDir = ExpandHome(c.Server.DataDir)
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("MANGASYNC_ENDPOINT", &c.Upload.Endpoint)
	str("MANGASYNC_IDENTITY", &c.Upload.Identity)
	str("MANGASYNC_PASSWORD", &c.Upload.Password)
	str("MANGASYNC_CATALOG_ENDPOINT", &c.Catalog.Endpoint)
	str("MANGASYNC_ADDR", &c.Server.Addr)
	str("MANGASYNC_TCP_ADDR", &c.Server.TCPAddr)
	str("MANGASYNC_DATA_DIR", &c.Server.DataDir)
	str("MANGASYNC_ADMIN_EMAIL", &c.Server.AdminEmail)
	str("MANGASYNC_ADMIN_PASSWORD", &c.Server.AdminPassword)
	str("MANGASYNC_JWT_SECRET", &c.Server.JWTSecret)
	str("MANGASYNC_JWT_ISSUER", &c.Server.JWTIssuer)

	if v := getenv("MANGASYNC_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MANGASYNC_THREADS: %w", err)
		}
		c.Upload.Threads = n
	}
	if v := getenv("MANGASYNC_JWT_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MANGASYNC_JWT_TTL_HOURS: %w", err)
		}
		c.Server.JWTTTL = time.Duration(n) * time.Hour
	}
	if v := getenv("MANGASYNC_REQUIRE_AUTH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MANGASYNC_REQUIRE_AUTH: %w", err)
		}
		c.Server.RequireAuth = b
	}
	return nil
}

// ApplyFlags overrides file and environment values with set flags.
func (c *Config) ApplyFlags(f Flags) {
	if f.Endpoint != "" {
		c.Upload.Endpoint = f.Endpoint
	}
	if f.Threads != 0 {
		c.Upload.Threads = f.Threads
	}
	if f.PollInterval != 0 {
		c.Upload.PollInterval = f.PollInterval
	}
	if f.Force {
		c.Upload.Force = true
	}
	if f.Addr != "" {
		c.Server.Addr = f.Addr
	}
	if f.TCPAddr != "" {
		c.Server.TCPAddr = f.TCPAddr
	}
	if f.DataDir != "" {
		c.Server.DataDir = ExpandHome(f.DataDir)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Upload.Endpoint) == "" {
		errs = append(errs, errors.New("upload.endpoint is empty"))
	}
	if c.Upload.Threads <= 0 {
		errs = append(errs, fmt.Errorf("upload.threads must be positive, got %d", c.Upload.Threads))
	}
	if c.Upload.PollInterval < 0 {
		errs = append(errs, errors.New("upload.poll_interval must not be negative"))
	}
	if strings.TrimSpace(c.Catalog.Endpoint) == "" {
		errs = append(errs, errors.New("catalog.endpoint is empty"))
	}
	if c.Server.RequireAuth && c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret is required when require_auth is on"))
	}
	if c.Server.JWTTTL < 0 {
		errs = append(errs, errors.New("server.jwt_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading ~ or any %HOME% with the home directory.
func ExpandHome(p string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	p = strings.ReplaceAll(p, "%HOME%", home)
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

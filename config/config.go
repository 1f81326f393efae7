// Package config loads the service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"premiumcat/logger"
)

const envPrefix = "PREMIUMCAT_"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log logger.Config `yaml:"log"`
	ML  struct {
		ModelType string `yaml:"model_type"`
		ModelPath string `yaml:"model_path"`
		Watch     bool   `yaml:"watch"` // reload when the artifact file is replaced
		Training  struct {
			DataPath       string  `yaml:"data_path"`
			MaxTreeDepth   int     `yaml:"max_tree_depth"`
			MinSamplesLeaf int     `yaml:"min_samples_leaf"`
			TestRatio      float64 `yaml:"test_ratio"`
			Seed           int64   `yaml:"seed"`
		} `yaml:"training"`
	} `yaml:"ml"`
	Cache struct {
		Backend string        `yaml:"backend"` // lru | redis | none
		Size    int           `yaml:"size"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Path = "premiumcat.db"
	cfg.Http.Port = 8080
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.AllowedOrigins = []string{"*"}
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.ML.ModelType = "decision_tree"
	cfg.ML.ModelPath = "models/model.json"
	cfg.ML.Training.DataPath = "data/insurance.csv"
	cfg.ML.Training.MaxTreeDepth = 8
	cfg.ML.Training.MinSamplesLeaf = 2
	cfg.ML.Training.TestRatio = 0.2
	cfg.ML.Training.Seed = 42
	cfg.Cache.Backend = "lru"
	cfg.Cache.Size = 1024
	cfg.Cache.TTL = 10 * time.Minute
	cfg.Cache.Redis.Address = "localhost:6379"
	return cfg
}

// Load reads path on top of Default, then applies .env and PREMIUMCAT_* overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(envPrefix + "MODEL_PATH"); v != "" {
		cfg.ML.ModelPath = v
	}
	if v := os.Getenv(envPrefix + "DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Address = v
	}
	if v := os.Getenv(envPrefix + "REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv(envPrefix + "HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_PORT: %w", envPrefix, err)
		}
		cfg.Http.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Http.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.ML.ModelPath == "" {
		return errors.New("ml.model_path is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	switch c.Cache.Backend {
	case "", "none", "lru":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return errors.New("cache.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.ML.Training.TestRatio < 0 || c.ML.Training.TestRatio >= 1 {
		return fmt.Errorf("ml.training.test_ratio %v out of range", c.ML.Training.TestRatio)
	}
	return nil
}

// Locate finds path in the working directory or its parent, so binaries run
// from cmd/ pick up the repository config. baseDir is the directory relative
// paths in the config should be resolved against.
func Locate(path string) (configPath, baseDir string) {
	if filepath.IsAbs(path) {
		return path, ""
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return path, ""
	}
	parent := filepath.Join("..", path)
	if _, err := os.Stat(parent); err == nil {
		return parent, ".."
	}
	return path, ""
}

// ResolvePaths rebases every relative file path in the config onto baseDir.
func (c *Config) ResolvePaths(baseDir string) {
	c.Database.Path = resolvePath(baseDir, c.Database.Path)
	c.ML.ModelPath = resolvePath(baseDir, c.ML.ModelPath)
	c.ML.Training.DataPath = resolvePath(baseDir, c.ML.Training.DataPath)
	c.Log.File = resolvePath(baseDir, c.Log.File)
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

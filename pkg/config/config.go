package config

// config 包读取和保存 YAML 配置文件 ~/.pdxu/config.yaml。

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dzjyyds666/pdxu/pkg"
	"gopkg.in/yaml.v3"
)

const (
	DirName  = ".pdxu"
	FileName = "config.yaml"
)

var ErrInvalid = errors.New("invalid config")

type MemoryConfig struct {
	// LimitMB caps the heap the memory guard allows. 0 uses the runtime
	// soft limit when one is set, otherwise the input size times Factor
	// must fit into the free system memory.
	LimitMB int     `yaml:"limit_mb"`
	Factor  float64 `yaml:"factor"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type WriterConfig struct {
	Indent string `yaml:"indent"`
}

type Config struct {
	StorageDir string       `yaml:"storage_dir"`
	Melter     string       `yaml:"melter"`
	Games      []string     `yaml:"games"`
	Memory     MemoryConfig `yaml:"memory"`
	Log        LogConfig    `yaml:"log"`
	Writer     WriterConfig `yaml:"writer"`

	path string
}

// HomeDir is ~/.pdxu, or the working directory when no home is known.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultPath is ~/.pdxu/config.yaml.
func DefaultPath() string {
	return filepath.Join(HomeDir(), FileName)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home := HomeDir()
	return &Config{
		StorageDir: filepath.Join(home, "savegames"),
		Melter:     "rakaly",
		Games:      []string{"eu4", "hoi4", "ck3", "stellaris"},
		Memory:     MemoryConfig{Factor: 6},
		Log:        LogConfig{Level: "info", Dir: filepath.Join(home, "logs")},
		Writer:     WriterConfig{Indent: "\t"},
	}
}

// Load reads path, or DefaultPath when path is empty. A missing file
// yields the defaults. Fields left out of the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreate is Load that also writes the defaults to path when no
// config file exists yet.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	exist, err := pkg.CheckFileExist(cfg.path)
	if err != nil {
		return nil, fmt.Errorf("check config %s: %w", cfg.path, err)
	}
	if !exist {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("%w: storage_dir is empty", ErrInvalid)
	}
	if c.Memory.LimitMB < 0 {
		return fmt.Errorf("%w: memory.limit_mb must not be negative", ErrInvalid)
	}
	if c.Memory.Factor < 0 {
		return fmt.Errorf("%w: memory.factor must not be negative", ErrInvalid)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// Path is where the config was loaded from and will be saved to.
func (c *Config) Path() string { return c.path }

// Save writes the config atomically to its path.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := pkg.WriteFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("write config %s: %w", c.path, err)
	}
	return nil
}

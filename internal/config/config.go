package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/pumplink"
)

// DefaultAuthKey is the factory AES key of the pump's library loader.
const DefaultAuthKey = "0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF"

type LogConfig struct {
	Directory  string `yaml:"directory"`
	FileName   string `yaml:"fileName"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	Concurrency int    `yaml:"concurrency"`
	StorageDir  string `yaml:"storageDir"`
}

// PumpConfig describes the serial link used by "send library".
type PumpConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baudRate"`
	DataBits int           `yaml:"dataBits"`
	StopBits int           `yaml:"stopBits"`
	Parity   string        `yaml:"parity"`
	Timeout  time.Duration `yaml:"timeout"`
	Checksum string        `yaml:"checksum"`
	AuthKey  string        `yaml:"authKey"`
}

type ReportConfig struct {
	PDF    bool `yaml:"pdf"`
	QRSize int  `yaml:"qrSize"`
}

type Config struct {
	OutputDir string       `yaml:"outputDir"`
	Strict    bool         `yaml:"strictReferences"`
	Logs      LogConfig    `yaml:"logs"`
	Server    ServerConfig `yaml:"server"`
	Pump      PumpConfig   `yaml:"pump"`
	Report    ReportConfig `yaml:"report"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path, fills defaults and resolves relative
// directories against the file's location.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if cfg.OutputDir != "" {
		cfg.OutputDir = resolvePath(cfg.OutputDir)
	}
	if cfg.Server.StorageDir != "" {
		cfg.Server.StorageDir = resolvePath(cfg.Server.StorageDir)
	}
	if cfg.Logs.Directory != "" {
		cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is set and exists, and returns the
// defaults otherwise.
func LoadOrDefault(path string) (Config, error) {
	if strings.TrimSpace(path) == "" || !common.PathExists(path) {
		return Default(), nil
	}
	return Load(path)
}

func (cfg *Config) applyDefaults() {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Concurrency <= 0 {
		cfg.Server.Concurrency = runtime.NumCPU()
	}
	if cfg.Server.StorageDir == "" {
		cfg.Server.StorageDir = filepath.Join(".", "data")
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(cfg.Server.StorageDir, "logs")
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	def := pumplink.DefaultSerialConfig("")
	if cfg.Pump.BaudRate == 0 {
		cfg.Pump.BaudRate = def.BaudRate
	}
	if cfg.Pump.DataBits == 0 {
		cfg.Pump.DataBits = def.DataBits
	}
	if cfg.Pump.StopBits == 0 {
		cfg.Pump.StopBits = def.StopBits
	}
	if cfg.Pump.Parity == "" {
		cfg.Pump.Parity = def.Parity
	}
	if cfg.Pump.Timeout <= 0 {
		cfg.Pump.Timeout = def.Timeout
	}
	if cfg.Pump.Checksum == "" {
		cfg.Pump.Checksum = "+"
	}
	if cfg.Pump.AuthKey == "" {
		cfg.Pump.AuthKey = DefaultAuthKey
	}
	if cfg.Report.QRSize <= 0 {
		cfg.Report.QRSize = 128
	}
}

// Validate checks value ranges. It does not modify cfg.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	switch cfg.Pump.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("pump.dataBits %d: want 5..8", cfg.Pump.DataBits)
	}
	if cfg.Pump.StopBits != 1 && cfg.Pump.StopBits != 2 {
		return fmt.Errorf("pump.stopBits %d: want 1 or 2", cfg.Pump.StopBits)
	}
	switch strings.ToUpper(cfg.Pump.Parity) {
	case "N", "E", "O":
	default:
		return fmt.Errorf("pump.parity %q: want N, E or O", cfg.Pump.Parity)
	}
	if cfg.Pump.BaudRate <= 0 {
		return fmt.Errorf("pump.baudRate %d must be positive", cfg.Pump.BaudRate)
	}
	if _, err := pumplink.ParseChecksumMode(cfg.Pump.Checksum); err != nil {
		return fmt.Errorf("pump.checksum: %w", err)
	}
	if _, err := cfg.Pump.Key(); err != nil {
		return err
	}
	return nil
}

// Key decodes the authorization key.
func (p PumpConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(p.AuthKey))
	if err != nil {
		return nil, fmt.Errorf("pump.authKey: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("pump.authKey: %w", pumplink.ErrAuthKeySize)
	}
}

// Serial converts the pump section into link settings.
func (p PumpConfig) Serial() pumplink.SerialConfig {
	return pumplink.SerialConfig{
		Port:     p.Port,
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		StopBits: p.StopBits,
		Parity:   p.Parity,
		Timeout:  p.Timeout,
	}
}

// LogOptions converts the logs section for common.SetupLogging.
func (l LogConfig) LogOptions(defaultName string) common.LogOptions {
	name := l.FileName
	if name == "" {
		name = defaultName
	}
	return common.LogOptions{
		Directory:  l.Directory,
		FileName:   name,
		MaxSizeMB:  l.MaxSizeMB,
		MaxAgeDays: l.MaxAgeDays,
		MaxBackups: l.MaxBackups,
		Compress:   l.Compress,
	}
}

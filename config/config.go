// Package config loads the runtime's key->value settings from the
// compile-time ENV/RUNTIME comment block embedded in a source file, then
// lets real process environment variables override individual keys at
// startup (spec §6 "Environment / configuration").
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	blockStart = "/* +++ ENV / RUNTIME +++ */"
	blockEnd   = "/* --- DO NOT EDIT --- */"
)

// Config holds every runtime-tunable the analyzer chain reads at startup.
// Zero values mean "use the built-in default", applied by Defaults.
type Config struct {
	FlowTableCapacity int    `yaml:"flow_table_capacity"`
	AnomalyLogPath    string `yaml:"anomaly_log_path"`
	MOASLogPath       string `yaml:"moas_log_path"`
	GeoIPv4File       string `yaml:"geo_ipv4_file"`
	GeoIPv6File       string `yaml:"geo_ipv6_file"`
	FingerprintFile   string `yaml:"fingerprint_file"`
	LogLevel          string `yaml:"log_level"`
	DaemonAddr        string `yaml:"daemon_addr"`
	DaemonPort        int    `yaml:"daemon_port"`
}

// Defaults returns the built-in Config used when a key is absent from
// both the embedded block and the environment.
func Defaults() Config {
	return Config{
		FlowTableCapacity: 65536,
		AnomalyLogPath:    "anomaly.log",
		MOASLogPath:       "moas.log",
		LogLevel:          "info",
		DaemonAddr:        "127.0.0.1",
		DaemonPort:        8420,
	}
}

// Load reads r looking for the ENV/RUNTIME comment block and unmarshals
// the YAML document found between its markers. A missing block is not an
// error: Load returns the zero Config, letting the caller fall back to
// Defaults and the environment alone.
func Load(r io.Reader) (Config, error) {
	var cfg Config

	block, err := extractBlock(r)
	if err != nil {
		return cfg, err
	}
	if block == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(block), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing ENV/RUNTIME block: %w", err)
	}
	return cfg, nil
}

// LoadFile opens path and calls Load on its contents.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func extractBlock(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var inBlock bool
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.TrimSpace(line) == blockStart:
			inBlock = true
			continue
		case strings.TrimSpace(line) == blockEnd:
			return strings.Join(lines, "\n"), nil
		case inBlock:
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("config: scanning ENV/RUNTIME block: %w", err)
	}
	if inBlock {
		return "", fmt.Errorf("config: %s without matching %s", blockStart, blockEnd)
	}
	return "", nil
}

// envOverrides maps each Config field to the environment variable that
// overrides it, e.g. FLOWAN_LOG_LEVEL overrides LogLevel.
var envOverrides = map[string]func(*Config, string){
	"FLOWAN_FLOW_TABLE_CAPACITY": func(c *Config, v string) { c.FlowTableCapacity = cast.ToInt(v) },
	"FLOWAN_ANOMALY_LOG_PATH":    func(c *Config, v string) { c.AnomalyLogPath = v },
	"FLOWAN_MOAS_LOG_PATH":       func(c *Config, v string) { c.MOASLogPath = v },
	"FLOWAN_GEO_IPV4_FILE":       func(c *Config, v string) { c.GeoIPv4File = v },
	"FLOWAN_GEO_IPV6_FILE":       func(c *Config, v string) { c.GeoIPv6File = v },
	"FLOWAN_FINGERPRINT_FILE":    func(c *Config, v string) { c.FingerprintFile = v },
	"FLOWAN_LOG_LEVEL":           func(c *Config, v string) { c.LogLevel = v },
	"FLOWAN_DAEMON_ADDR":         func(c *Config, v string) { c.DaemonAddr = v },
	"FLOWAN_DAEMON_PORT":         func(c *Config, v string) { c.DaemonPort = cast.ToInt(v) },
}

// ApplyEnv overlays any FLOWAN_* environment variable found in os.Environ
// onto cfg, overriding values loaded from the ENV/RUNTIME block.
func ApplyEnv(cfg Config) Config {
	for name, set := range envOverrides {
		if v, ok := os.LookupEnv(name); ok {
			set(&cfg, v)
		}
	}
	return cfg
}

// merge fills every zero-valued field of cfg from fallback, used to layer
// Defaults() under a Load()+ApplyEnv() result.
func merge(cfg, fallback Config) Config {
	if cfg.FlowTableCapacity == 0 {
		cfg.FlowTableCapacity = fallback.FlowTableCapacity
	}
	if cfg.AnomalyLogPath == "" {
		cfg.AnomalyLogPath = fallback.AnomalyLogPath
	}
	if cfg.MOASLogPath == "" {
		cfg.MOASLogPath = fallback.MOASLogPath
	}
	if cfg.GeoIPv4File == "" {
		cfg.GeoIPv4File = fallback.GeoIPv4File
	}
	if cfg.GeoIPv6File == "" {
		cfg.GeoIPv6File = fallback.GeoIPv6File
	}
	if cfg.FingerprintFile == "" {
		cfg.FingerprintFile = fallback.FingerprintFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = fallback.LogLevel
	}
	if cfg.DaemonAddr == "" {
		cfg.DaemonAddr = fallback.DaemonAddr
	}
	if cfg.DaemonPort == 0 {
		cfg.DaemonPort = fallback.DaemonPort
	}
	return cfg
}

// Resolve is the startup entry point: load the embedded block from path
// (if it exists), apply environment overrides, then fall back to
// Defaults for anything still unset.
func Resolve(path string) (Config, error) {
	var cfg Config
	if path != "" {
		var err error
		cfg, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	cfg = ApplyEnv(cfg)
	return merge(cfg, Defaults()), nil
}

package ocspguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"time"
)

const (
	defaultConfigName = "ocspguard_config.json"
	configEnvName     = "OCSPGUARD_CONFIG_FILE"
)

// FileConfig is the root of an optional on-disk configuration file, adapted
// from the teacher's sf_client_config.json shape (client_configuration.go)
// but retargeted at OCSP lookup options instead of driver log settings.
type FileConfig struct {
	Common *FileConfigCommonProps `json:"common"`
}

// FileConfigCommonProps holds the subset of Options a file can override.
type FileConfigCommonProps struct {
	LogLevel  string `json:"log_level,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// LoadFileConfig locates and parses an ocspguard_config.json-shaped file,
// following the same search order as the teacher's client configuration
// loader: an explicit path, then OCSPGUARD_CONFIG_FILE, then the predefined
// directories (current directory, then home directory). Returns (nil, nil)
// if no file is found anywhere in the search order.
func LoadFileConfig(explicitPath string) (*FileConfig, error) {
	filePath := findConfigFilePath(explicitPath, predefinedConfigDirs())
	if filePath == "" {
		return nil, nil
	}
	exists, err := existsFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("parsing ocspguard config failed: %w", err)
	}
	if !exists {
		return nil, nil
	}
	return parseFileConfig(filePath)
}

func findConfigFilePath(explicitPath string, predefinedDirs []string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if envPath := os.Getenv(configEnvName); envPath != "" {
		return envPath
	}
	return searchConfigDirs(predefinedDirs)
}

func searchConfigDirs(dirs []string) string {
	for _, dir := range dirs {
		filePath := path.Join(dir, defaultConfigName)
		if exists, err := existsFile(filePath); err == nil && exists {
			return filePath
		}
	}
	return ""
}

func existsFile(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func predefinedConfigDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}
	return []string{".", homeDir}
}

func parseFileConfig(filePath string) (*FileConfig, error) {
	if err := checkConfigPermissions(filePath); err != nil {
		return nil, fmt.Errorf("parsing ocspguard config failed: %w", err)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("parsing ocspguard config failed: %w", err)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing ocspguard config failed: %w", err)
	}
	if cfg.Common == nil {
		return nil, fmt.Errorf("parsing ocspguard config failed: common section not found")
	}
	if cfg.Common.LogLevel != "" {
		if _, err := toLogLevel(cfg.Common.LogLevel); err != nil {
			return nil, fmt.Errorf("parsing ocspguard config failed: %w", err)
		}
	}
	return &cfg, nil
}

// checkConfigPermissions refuses a config file writable by anyone but its
// owner, the same check the teacher applies before trusting a client
// configuration file (isCfgPermValid).
func checkConfigPermissions(filePath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		return err
	}
	perm := stat.Mode()
	if perm&(1<<4) != 0 || perm&(1<<1) != 0 {
		return fmt.Errorf("configuration file %s can be modified by group or others", filePath)
	}
	return nil
}

func toLogLevel(level string) (string, error) {
	switch strings.ToUpper(level) {
	case "PANIC", "FATAL", "ERROR", "WARN", "WARNING", "INFO", "DEBUG", "TRACE":
		return strings.ToUpper(level), nil
	default:
		return "", fmt.Errorf("unknown log level: %s", level)
	}
}

// ApplyTo overlays the file's settings onto opts, leaving fields the file
// doesn't mention untouched.
func (c *FileConfig) ApplyTo(opts *Options) error {
	if c == nil || c.Common == nil {
		return nil
	}
	if c.Common.TimeoutMs > 0 {
		opts.Timeout = time.Duration(c.Common.TimeoutMs) * time.Millisecond
	}
	if c.Common.LogLevel != "" {
		level, err := toLogLevel(c.Common.LogLevel)
		if err != nil {
			return err
		}
		if opts.Logger == nil {
			opts.Logger = DefaultLogger()
		}
		if err := opts.Logger.SetLogLevel(strings.ToLower(level)); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var once bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/casetrail/config.yml)")
	flag.BoolVar(&once, "once", false, "run a single retrieval and exit")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("casetrail - process instance log retrieval\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if once {
		err = runOnce(cfg)
	} else {
		err = runServer(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultTargetDir := filepath.Join(home, ".local", "share", "casetrail", "processes")
	defaultDBPath := filepath.Join(home, ".local", "share", "casetrail", "eventlog.duckdb")

	v := viper.New()
	v.SetEnvPrefix("CASETRAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("graylog-url", "")
	v.SetDefault("graylog-api-token", "")
	v.SetDefault("target-dir", defaultTargetDir)
	v.SetDefault("filter-config", "")
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("eventlog-enabled", true)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("retrieve-interval", defaultRetrieveInterval)
	v.SetDefault("request-timeout", defaultRequestTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "casetrail", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if strings.TrimSpace(cfg.GraylogURL) == "" {
		return cfg, errors.New("graylog-url is required")
	}
	if strings.TrimSpace(cfg.GraylogAPIToken) == "" {
		return cfg, errors.New("graylog-api-token is required")
	}
	if cfg.RetrieveInterval <= 0 {
		return cfg, fmt.Errorf("invalid retrieve-interval: %s", cfg.RetrieveInterval)
	}
	return cfg, nil
}

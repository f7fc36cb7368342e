package main

import (
	"time"

	"github.com/casetrail/casetrail/internal/model"
)

const (
	defaultAPIAddr          = "127.0.0.1:3000"
	defaultRetrieveInterval = model.DefaultRetrieveInterval
	defaultRequestTimeout   = 2 * time.Minute
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	GraylogURL       string        `mapstructure:"graylog-url"`
	GraylogAPIToken  string        `mapstructure:"graylog-api-token"`
	TargetDir        string        `mapstructure:"target-dir"`
	FilterConfigPath string        `mapstructure:"filter-config"`
	DBPath           string        `mapstructure:"db-path"`
	EventLogEnabled  bool          `mapstructure:"eventlog-enabled"`
	APIEnabled       bool          `mapstructure:"api-enabled"`
	APIAddr          string        `mapstructure:"api-addr"`
	RetrieveInterval time.Duration `mapstructure:"retrieve-interval"`
	RequestTimeout   time.Duration `mapstructure:"request-timeout"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}

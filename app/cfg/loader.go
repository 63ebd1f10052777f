package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"newsriver" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"newsriver" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"newsriver" description:"Database name"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	RulesFile         string `long:"rules-file" env:"RULES_FILE" default:"./rules.yml" description:"Classification rules file"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Full sweep interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-source fetch timeout in seconds"`
	FetchLimit        int    `long:"fetch-limit" env:"FETCH_LIMIT" default:"50" description:"Maximum items considered per source per cycle"`
	KeepAliveInterval int    `long:"keepalive-interval" env:"KEEPALIVE_INTERVAL" default:"30" description:"Live stream keep-alive interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Channel source configuration
	ChannelAPIBase string `long:"channel-api-base" env:"CHANNEL_API_BASE" default:"https://api.telegram.org" description:"Base URL of the channel messaging API"`
	ChannelToken   string `long:"channel-token" env:"CHANNEL_TOKEN" description:"Bot token for the channel messaging API"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"newsriver/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		Port:              raw.Port,
		RulesFile:         raw.RulesFile,
		SchedulerInterval: raw.SchedulerInterval,
		FetchTimeout:      raw.FetchTimeout,
		FetchLimit:        raw.FetchLimit,
		KeepAliveInterval: raw.KeepAliveInterval,
		APIAccessKey:      raw.APIAccessKey,
		ChannelAPIBase:    raw.ChannelAPIBase,
		ChannelToken:      raw.ChannelToken,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}

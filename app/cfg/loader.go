package cfg

import (
	"cmp"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DataDir      string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory holding feed list, feed state and sent article record"`
	FeedsFile    string `long:"feeds-file" env:"FEEDS_FILE" description:"Feed list JSON file (defaults to <data-dir>/config.json)"`
	StoreBackend string `long:"store" env:"STORE_BACKEND" default:"file" choice:"file" choice:"sqlite" choice:"redis" description:"Backend for sent articles and feed state"`
	DBPath       string `long:"db-path" env:"DB_PATH" description:"SQLite database path (defaults to <data-dir>/rss-hook.db)"`
	RedisAddr    string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the redis store backend"`
	SentLimit    int    `long:"sent-limit" env:"SENT_LIMIT" default:"10000" description:"Maximum number of remembered sent article ids"`

	// Scheduling configuration
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"0" description:"Maximum concurrent feed checks per cycle (0 = unlimited)"`
	FetchTimeout      int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	DeliveryTimeout   int `long:"delivery-timeout" env:"DELIVERY_TIMEOUT" default:"15" description:"Webhook delivery timeout in seconds"`
	RecencyWindow     int `long:"recency-window" env:"RECENCY_WINDOW" default:"24" description:"Only entries published within this many hours are delivered"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Logging configuration
	LogFile       string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file (rotated)"`
	LogMaxSize    int    `long:"log-max-size" env:"LOG_MAX_SIZE" default:"64" description:"Maximum log file size in megabytes before rotation"`
	LogMaxBackups int    `long:"log-max-backups" env:"LOG_MAX_BACKUPS" default:"3" description:"Number of rotated log files to keep"`
	LogMaxAge     int    `long:"log-max-age" env:"LOG_MAX_AGE" default:"7" description:"Days to keep rotated log files"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/116.0" description:"User agent string for feed requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:           raw.DataDir,
		FeedsFile:         cmp.Or(raw.FeedsFile, filepath.Join(raw.DataDir, "config.json")),
		StoreBackend:      raw.StoreBackend,
		DBPath:            cmp.Or(raw.DBPath, filepath.Join(raw.DataDir, "rss-hook.db")),
		RedisAddr:         raw.RedisAddr,
		SentLimit:         raw.SentLimit,
		SchedulerInterval: raw.SchedulerInterval,
		WorkerCount:       raw.WorkerCount,
		FetchTimeout:      raw.FetchTimeout,
		DeliveryTimeout:   raw.DeliveryTimeout,
		RecencyWindow:     raw.RecencyWindow,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		LogFile:           raw.LogFile,
		LogMaxSize:        raw.LogMaxSize,
		LogMaxBackups:     raw.LogMaxBackups,
		LogMaxAge:         raw.LogMaxAge,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"sent limit":         cfg.SentLimit,
		"scheduler interval": cfg.SchedulerInterval,
		"fetch timeout":      cfg.FetchTimeout,
		"delivery timeout":   cfg.DeliveryTimeout,
		"recency window":     cfg.RecencyWindow,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.WorkerCount < 0 {
		return fmt.Errorf("worker count must be non-negative")
	}

	return nil
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

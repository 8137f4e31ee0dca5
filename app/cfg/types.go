package cfg

import "time"

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Cfg struct {
	// Storage configuration
	DataDir      string
	FeedsFile    string
	StoreBackend string
	DBPath       string
	RedisAddr    string
	SentLimit    int

	// Scheduling configuration
	SchedulerInterval int
	WorkerCount       int
	FetchTimeout      int
	DeliveryTimeout   int
	RecencyWindow     int

	// HTTP configuration
	Port         string
	APIAccessKey string

	// Logging configuration
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) GetSchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Cfg) GetDeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeout) * time.Second
}

func (c *Cfg) GetRecencyWindow() time.Duration {
	return time.Duration(c.RecencyWindow) * time.Hour
}

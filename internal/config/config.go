package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	API              APIHTTPConfig           `env:",prefix=API_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               SQLiteConfig            `env:",prefix=DB_"`
	Backend          BackendConfig           `env:",prefix=BACKEND_"`
	Telegram         TelegramConfig          `env:",prefix=TELEGRAM_"`
	Poll             PollConfig              `env:",prefix=POLL_"`
	Journal          JournalConfig           `env:",prefix=JOURNAL_"`
}

// TelegramConfig is optional: without a token no notifications are sent.
type TelegramConfig struct {
	BotToken string        `env:"BOT_TOKEN"`
	Timeout  time.Duration `env:"TIMEOUT,default=30s"`
	AdminIDs []int64       `env:"ADMIN_IDS"`
	Language string        `env:"LANGUAGE,default=ru"`
}

type HTTPClientConfig struct {
	Scheme        string        `env:"SCHEME,default=http"`
	Host          string        `env:"HOST,default=127.0.0.1"`
	Port          uint16        `env:"PORT,default=9000"`
	Timeout       time.Duration `env:"TIMEOUT,default=30s"`
	MaxRetries    int           `env:"MAX_RETRIES,default=3"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL,default=2s"`
	RateLimit     struct {
		Burst int     `env:"BURST,default=0"`
		RPS   float64 `env:"RPS,default=20.0"`
	} `env:",prefix=RATE_LIMIT_"`
}

func (c HTTPClientConfig) ADDR() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}

// BackendConfig points at the platform backend that owns all business rules.
type BackendConfig struct {
	HTTPClientConfig
	BasePath string `env:"BASE_PATH,default=/api"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

func (c BackendConfig) BaseURL() string {
	return c.ADDR() + c.BasePath
}

type LoggerConfig struct {
	Level     string `env:"LEVEL,default=debug"`
	AddSource bool   `env:"ADD_SOURCE,default=false"`
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type APIHTTPConfig struct {
	Host         string        `env:"HOST,default=0.0.0.0"`
	Port         uint16        `env:"PORT,default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=60s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=2m"`
}

func (a APIHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type SQLiteConfig struct {
	Path         string `env:"PATH,default=./data/panel.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS,default=5"`
	MaxLifetime  string `env:"MAX_LIFETIME,default=5m"`
}

type PollConfig struct {
	Interval time.Duration `env:"INTERVAL,default=3s"`
}

type JournalConfig struct {
	Retention     time.Duration `env:"RETENTION,default=720h"`
	PruneSchedule string        `env:"PRUNE_SCHEDULE,default=15 3 * * *"`
}

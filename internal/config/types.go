package config

import (
	"fmt"
	"image/color"
	"time"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Redis    RedisConfig    `json:"redis"`
	Bus      BusConfig      `json:"bus"`
	Lock     LockConfig     `json:"lock"`
	Image    ImageConfig    `json:"image"`
	Audio    AudioConfig    `json:"audio"`
	Worker   WorkerConfig   `json:"worker"`
	Wait     WaitConfig     `json:"wait"`
	Delivery DeliveryConfig `json:"delivery"`
	R2       R2Config       `json:"r2"`
	Sentry   SentryConfig   `json:"sentry"`
	Log      LogConfig      `json:"log"`
}

type ServerConfig struct {
	Port             int     `json:"port" env:"SERVER_PORT" env-default:"5095" validate:"gte=1,lte=65535"`
	MetricsPort      int     `json:"metrics_port" env:"METRICS_PORT" env-default:"9095"`
	ReadTimeout      int     `json:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30"` // seconds
	MaxRequestBodyMB int64   `json:"max_request_body" env:"SERVER_MAX_BODY_MB" env-default:"64" validate:"gte=1"`
	RateLimitRPS     float64 `json:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"0"`
	RateLimitBurst   int     `json:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

type AuthConfig struct {
	Token string `json:"token" env:"AUTH_TOKEN"`
}

type RedisConfig struct {
	Password   string `json:"password" env:"REDIS_PASSWORD"`
	DatabaseID int    `json:"database_id" env:"REDIS_DB" env-default:"0"`

	// Durations below are in seconds.
	HealthCheckInterval int         `json:"health_check_interval" env:"REDIS_HEALTH_CHECK_INTERVAL" env-default:"30" validate:"gte=1"`
	DialTimeout         int         `json:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5"`
	ReadTimeout         int         `json:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"3"`
	WriteTimeout        int         `json:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"3"`
	PoolSize            int         `json:"pool_size" env:"REDIS_POOL_SIZE" env-default:"20"`
	Nodes               []RedisNode `json:"nodes"`
	// Addr is a shorthand for a single node, used when Nodes is empty.
	Addr string `json:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

// Addrs returns the configured node addresses, falling back to Addr.
func (c RedisConfig) Addrs() []string {
	addrs := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		addrs = append(addrs, n.Addr())
	}
	if len(addrs) == 0 && c.Addr != "" {
		addrs = append(addrs, c.Addr)
	}
	return addrs
}

type BusConfig struct {
	JobsChannel    string `json:"jobs_channel" env:"BUS_JOBS_CHANNEL" env-default:"converter:requests" validate:"required"`
	ResultsChannel string `json:"results_channel" env:"BUS_RESULTS_CHANNEL" env-default:"converter:responses" validate:"required,nefield=JobsChannel"`
	Codec          string `json:"codec" env:"BUS_CODEC" env-default:"msgpack" validate:"oneof=msgpack json"`
}

type LockConfig struct {
	TTLSeconds int    `json:"ttl_seconds" env:"LOCK_TTL_SECONDS" env-default:"600" validate:"gte=1"`
	Namespace  string `json:"namespace" env:"LOCK_NAMESPACE" env-default:"converter:lock" validate:"required"`
}

func (c LockConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

type ImageConfig struct {
	TargetWidth  int    `json:"target_width" env:"IMAGE_TARGET_WIDTH" env-default:"1024" validate:"gte=1"`
	TargetHeight int    `json:"target_height" env:"IMAGE_TARGET_HEIGHT" env-default:"1024" validate:"gte=1"`
	Background   string `json:"background" env:"IMAGE_BG_COLOR" env-default:"#FFFFFF" validate:"required"`
}

// BackgroundColor parses Background; Validate guarantees it succeeds.
func (c ImageConfig) BackgroundColor() color.NRGBA {
	bg, _ := ParseHexColor(c.Background)
	return bg
}

type AudioConfig struct {
	Bitrate        string `json:"bitrate" env:"AUDIO_BITRATE" env-default:"192k" validate:"required"`
	FFmpegPath     string `json:"ffmpeg_path" env:"FFMPEG_PATH" env-default:"ffmpeg"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"AUDIO_TIMEOUT_SECONDS" env-default:"600" validate:"gte=1"`
}

func (c AudioConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

type WorkerConfig struct {
	InstanceID       string        `json:"instance_id" env:"WORKER_INSTANCE_ID"`
	FallbackOrder    []string      `json:"fallback_order" env:"FALLBACK_ORDER" env-default:"image,audio" env-separator:"," validate:"min=1,dive,oneof=image audio"`
	ResubscribeDelay time.Duration `json:"resubscribe_delay" env:"WORKER_RESUBSCRIBE_DELAY" env-default:"1s"`
}

type WaitConfig struct {
	// TimeoutSeconds bounds a synchronous wait for a result. 0 waits forever.
	TimeoutSeconds int `json:"timeout_seconds" env:"WAIT_TIMEOUT_SECONDS" env-default:"300" validate:"gte=0"`
}

func (c WaitConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

type DeliveryConfig struct {
	Workers        int           `json:"workers" env:"DELIVERY_WORKERS" env-default:"4" validate:"gte=1"`
	QueueSize      int           `json:"queue_size" env:"DELIVERY_QUEUE_SIZE" env-default:"256" validate:"gte=1"`
	MaxRetries     int           `json:"max_retries" env:"DELIVERY_MAX_RETRIES" env-default:"3" validate:"gte=0"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" env:"DELIVERY_RETRY_BASE_DELAY" env-default:"300ms"`
	Timeout        time.Duration `json:"timeout" env:"DELIVERY_TIMEOUT" env-default:"30s"`
	ArchivePrefix  string        `json:"archive_prefix" env:"DELIVERY_ARCHIVE_PREFIX" env-default:"results/"`
}

type R2Config struct {
	AccountID   string `json:"account_id" env:"R2_ACCOUNT_ID"`
	BucketName  string `json:"bucket_name" env:"R2_BUCKET"`
	AccessKeyID string `json:"access_key_id" env:"R2_ACCESS_KEY_ID"`
	SecretKey   string `json:"secret_key" env:"R2_SECRET_KEY"`
	Endpoint    string `json:"endpoint" env:"R2_ENDPOINT"`
}

// Enabled reports whether result archiving is configured.
func (c R2Config) Enabled() bool { return c.BucketName != "" && c.AccessKeyID != "" }

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn" env:"SENTRY_DSN"`
	Environment string `json:"environment" env:"SENTRY_ENVIRONMENT" env-default:"production"`
}

type LogConfig struct {
	Level    string `json:"level" env:"LOG_LEVEL" env-default:"info"`
	Format   string `json:"format" env:"LOG_FORMAT" env-default:"json"`
	FilePath string `json:"file" env:"LOG_FILE"`
}

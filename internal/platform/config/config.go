package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	platformstrings "qrcall/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	PublicURL   string
	DatabaseURL string
	// JWTSigningKey verifies owner tokens and signs caller tokens.
	JWTSigningKey string
	JWTIssuer     string

	Redis     RedisConfig
	Calls     CallsConfig
	RTC       RTCConfig
	Masked    MaskedConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Realtime  RealtimeConfig
	Kafka     KafkaConfig
	MQTT      MQTTConfig
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CallsConfig struct {
	MaxDuration   time.Duration
	RingTimeout   time.Duration
	SweepInterval time.Duration
}

// RTCConfig holds Tencent TRTC credentials.
type RTCConfig struct {
	SDKAppID      int
	SecretKey     string
	CredentialTTL time.Duration
}

type MaskedConfig struct {
	Enabled       bool
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxAttempts   int
	RetryWait     time.Duration
	MaxRetryWait  time.Duration
	// Budget caps the whole relay exchange, retries included, so the direct
	// fallback still fits in the request deadline.
	Budget time.Duration
}

// Configured reports whether masked calls can be offered.
func (m MaskedConfig) Configured() bool {
	return m.Enabled && m.BaseURL != "" && m.APIKey != ""
}

type NotifyConfig struct {
	TokenAPIURL string
	PushURL     string
	PushAPIKey  string
	Timeout     time.Duration
	MaxAttempts int
	Workers     int
	QueueSize   int
}

type RateLimitConfig struct {
	Disabled      bool
	CallLimit     int
	CallWindow    time.Duration
	GeneralLimit  int
	GeneralWindow time.Duration
}

type RealtimeConfig struct {
	AllowedOrigins []string
	RelayChannel   string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MQTTConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	BroadcastTopic string
	PublishTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() Server {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envString("QRCALL_ADDR", ":8080"),
		Environment:   envString("APP_ENV", "development"),
		PublicURL:     strings.TrimRight(envString("PUBLIC_URL", "http://localhost:8080"), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envString("JWT_ISSUER", "qrcall"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Calls: CallsConfig{
			MaxDuration:   envDuration("CALL_MAX_DURATION", time.Hour),
			RingTimeout:   envDuration("CALL_RING_TIMEOUT", 30*time.Second),
			SweepInterval: envDuration("CALL_SWEEP_INTERVAL", 10*time.Second),
		},
		RTC: RTCConfig{
			SDKAppID:      envInt("TRTC_SDK_APP_ID", 0),
			SecretKey:     os.Getenv("TRTC_SECRET_KEY"),
			CredentialTTL: envDuration("TRTC_CREDENTIAL_TTL", 24*time.Hour),
		},
		Masked: MaskedConfig{
			Enabled:       envBool("MASKED_CALLING_ENABLED", false),
			BaseURL:       strings.TrimRight(os.Getenv("MASKED_CALLING_BASE_URL"), "/"),
			APIKey:        os.Getenv("MASKED_CALLING_API_KEY"),
			WebhookSecret: os.Getenv("MASKED_CALLING_WEBHOOK_SECRET"),
			Timeout:       envDuration("MASKED_CALLING_TIMEOUT", 30*time.Second),
			MaxAttempts:   envInt("MASKED_CALLING_RETRY_ATTEMPTS", 3),
			RetryWait:     envDuration("MASKED_CALLING_RETRY_WAIT", time.Second),
			MaxRetryWait:  envDuration("MASKED_CALLING_MAX_RETRY_WAIT", 8*time.Second),
			Budget:        envDuration("MASKED_CALLING_BUDGET", 10*time.Second),
		},
		Notify: NotifyConfig{
			TokenAPIURL: os.Getenv("PUSH_TOKEN_API_URL"),
			PushURL:     os.Getenv("PUSH_GATEWAY_URL"),
			PushAPIKey:  os.Getenv("PUSH_GATEWAY_API_KEY"),
			Timeout:     envDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
			MaxAttempts: envInt("NOTIFICATION_RETRY_ATTEMPTS", 3),
			Workers:     envInt("NOTIFICATION_WORKERS", 4),
			QueueSize:   envInt("NOTIFICATION_QUEUE_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			Disabled:      envBool("RATE_LIMIT_DISABLED", false),
			CallLimit:     envInt("CALL_RATE_LIMIT_MAX", 10),
			CallWindow:    envDuration("CALL_RATE_LIMIT_WINDOW", time.Minute),
			GeneralLimit:  envInt("RATE_LIMIT_MAX", 100),
			GeneralWindow: envDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Realtime: RealtimeConfig{
			AllowedOrigins: platformstrings.DedupeAndTrimLower(envList("SOCKET_ALLOWED_ORIGINS")),
			RelayChannel:   envString("REALTIME_RELAY_CHANNEL", "qrcall:realtime"),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_CALL_EVENTS_TOPIC", "call-events"),
		},
		MQTT: MQTTConfig{
			BrokerURL:      os.Getenv("MQTT_BROKER_URL"),
			ClientID:       envString("MQTT_CLIENT_ID", "qrcall-server"),
			Username:       os.Getenv("MQTT_USERNAME"),
			Password:       os.Getenv("MQTT_PASSWORD"),
			TopicPrefix:    envString("MQTT_TOPIC_PREFIX", "qrcall/users"),
			BroadcastTopic: envString("MQTT_BROADCAST_TOPIC", "qrcall/broadcast"),
			PublishTimeout: envDuration("MQTT_PUBLISH_TIMEOUT", 5*time.Second),
		},
	}
}

// IsDevelopment reports whether the process runs outside production.
func (s Server) IsDevelopment() bool {
	return s.Environment != "production"
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

// envDuration accepts Go durations ("30s") or a plain number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(raw, ","))
}

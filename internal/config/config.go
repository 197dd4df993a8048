// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, collaborator endpoints, the RPC lease pool, the cache topology,
// the durable feed log backend, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-feed-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RPCConfig sizes the per-destination connection lease pools.
type RPCConfig struct {
	MaxConns     int           // RPC_MAX_CONNS, handles per destination
	Timeout      time.Duration // RPC_TIMEOUT, per round trip
	LeaseTimeout time.Duration // RPC_LEASE_TIMEOUT, wait for a free handle
	KeepAlive    time.Duration // RPC_KEEPALIVE, idle handle lifetime
}

// CollaboratorsConfig holds the base URL of every remote collaborator.
type CollaboratorsConfig struct {
	User        string // USER_SERVICE_ADDR
	Text        string // TEXT_SERVICE_ADDR
	Media       string // MEDIA_SERVICE_ADDR
	UniqueID    string // UNIQUE_ID_SERVICE_ADDR
	SocialGraph string // SOCIAL_GRAPH_SERVICE_ADDR
	PostStorage string // POST_STORAGE_SERVICE_ADDR
}

// CacheConfig selects the Redis topology backing the feed cache.
type CacheConfig struct {
	Mode        string   // CACHE_MODE: single|replica|cluster
	Addr        string   // REDIS_ADDR (single, and primary in replica mode)
	ReplicaAddr string   // REDIS_REPLICA_ADDR
	ShardAddrs  []string // REDIS_SHARD_ADDRS (cluster mode, CSV)
	Password    string   // REDIS_PASSWORD
	PoolSize    int      // REDIS_POOL_SIZE
	DialTimeout time.Duration
}

// FeedLogConfig selects the durable user-timeline log.
type FeedLogConfig struct {
	Backend       string // FEEDLOG_BACKEND: sqlite|postgres|mongo
	DBPath        string // DB_PATH (sqlite)
	PostgresDSN   string // POSTGRES_DSN
	MongoURI      string // MONGO_URI
	MongoDatabase string // MONGO_DATABASE
	MaxDepth      int    // FEED_MAX_DEPTH, newest entries readable per owner
}

// DevStackConfig configures the in-process collaborator stack.
type DevStackConfig struct {
	Port      string // DEVSTACK_PORT
	DBPath    string // DEVSTACK_DB_PATH
	MachineID string // MACHINE_ID; empty derives one from the hostname
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // serve Swagger UI under /swagger
	APIBasePath    string // base path for API routes

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Feed backends and collaborators
	RPC           RPCConfig
	Collaborators CollaboratorsConfig
	Cache         CacheConfig
	FeedLog       FeedLogConfig
	DevStack      DevStackConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	devAddr := getenv("DEVSTACK_ADDR", "http://localhost:9090")

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 50.0),
		RateBurst: getint("RATE_BURST", 100),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		RPC: RPCConfig{
			MaxConns:     getint("RPC_MAX_CONNS", 64),
			Timeout:      getdur("RPC_TIMEOUT", 5*time.Second),
			LeaseTimeout: getdur("RPC_LEASE_TIMEOUT", time.Second),
			KeepAlive:    getdur("RPC_KEEPALIVE", 60*time.Second),
		},
		Collaborators: CollaboratorsConfig{
			User:        trimURL(getenv("USER_SERVICE_ADDR", devAddr)),
			Text:        trimURL(getenv("TEXT_SERVICE_ADDR", devAddr)),
			Media:       trimURL(getenv("MEDIA_SERVICE_ADDR", devAddr)),
			UniqueID:    trimURL(getenv("UNIQUE_ID_SERVICE_ADDR", devAddr)),
			SocialGraph: trimURL(getenv("SOCIAL_GRAPH_SERVICE_ADDR", devAddr)),
			PostStorage: trimURL(getenv("POST_STORAGE_SERVICE_ADDR", devAddr)),
		},
		Cache: CacheConfig{
			Mode:        strings.ToLower(getenv("CACHE_MODE", "single")),
			Addr:        getenv("REDIS_ADDR", "localhost:6379"),
			ReplicaAddr: getenv("REDIS_REPLICA_ADDR", ""),
			ShardAddrs:  splitCSV(getenv("REDIS_SHARD_ADDRS", "")),
			Password:    getenv("REDIS_PASSWORD", ""),
			PoolSize:    getint("REDIS_POOL_SIZE", 32),
			DialTimeout: getdur("REDIS_DIAL_TIMEOUT", 2*time.Second),
		},
		FeedLog: FeedLogConfig{
			Backend:       strings.ToLower(getenv("FEEDLOG_BACKEND", "sqlite")),
			DBPath:        getenv("DB_PATH", "feed.db"),
			PostgresDSN:   getenv("POSTGRES_DSN", ""),
			MongoURI:      getenv("MONGO_URI", ""),
			MongoDatabase: getenv("MONGO_DATABASE", "user-timeline"),
			MaxDepth:      getint("FEED_MAX_DEPTH", 1000),
		},
		DevStack: DevStackConfig{
			Port:      getenv("DEVSTACK_PORT", "9090"),
			DBPath:    getenv("DEVSTACK_DB_PATH", "devstack.db"),
			MachineID: getenv("MACHINE_ID", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-feed-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = "single"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.RPC.MaxConns < 1 {
		return cfg, errors.New("RPC_MAX_CONNS must be >= 1")
	}
	if cfg.RPC.Timeout <= 0 || cfg.RPC.LeaseTimeout <= 0 || cfg.RPC.KeepAlive <= 0 {
		return cfg, errors.New("RPC_TIMEOUT, RPC_LEASE_TIMEOUT and RPC_KEEPALIVE must be positive durations")
	}
	switch cfg.Cache.Mode {
	case "single":
		if strings.TrimSpace(cfg.Cache.Addr) == "" {
			return cfg, errors.New("REDIS_ADDR must not be empty")
		}
	case "replica":
		if strings.TrimSpace(cfg.Cache.Addr) == "" || strings.TrimSpace(cfg.Cache.ReplicaAddr) == "" {
			return cfg, errors.New("replica mode requires REDIS_ADDR and REDIS_REPLICA_ADDR")
		}
	case "cluster":
		if len(cfg.Cache.ShardAddrs) == 0 {
			return cfg, errors.New("cluster mode requires REDIS_SHARD_ADDRS")
		}
	default:
		return cfg, errors.New("CACHE_MODE must be one of: single, replica, cluster")
	}
	if cfg.Cache.PoolSize < 1 {
		return cfg, errors.New("REDIS_POOL_SIZE must be >= 1")
	}
	switch cfg.FeedLog.Backend {
	case "sqlite":
		if strings.TrimSpace(cfg.FeedLog.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.FeedLog.PostgresDSN) == "" {
			return cfg, errors.New("POSTGRES_DSN must not be empty for the postgres backend")
		}
	case "mongo":
		if strings.TrimSpace(cfg.FeedLog.MongoURI) == "" {
			return cfg, errors.New("MONGO_URI must not be empty for the mongo backend")
		}
	default:
		return cfg, errors.New("FEEDLOG_BACKEND must be one of: sqlite, postgres, mongo")
	}
	if cfg.FeedLog.MaxDepth < 1 {
		return cfg, errors.New("FEED_MAX_DEPTH must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// trimURL drops surrounding whitespace and trailing slashes from a base URL.
func trimURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

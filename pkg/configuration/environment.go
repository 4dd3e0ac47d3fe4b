package configuration

import (
	"fmt"
	"log"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// moduleRoot walks up from dir until it finds a go.mod.
func moduleRoot(dir string) (string, bool) {
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadEnv loads the given env files from the working directory. When none of
// them exist there, the files next to the nearest go.mod are tried instead.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fileExists(file) {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		wd, err := os.Getwd()
		if err == nil {
			if root, ok := moduleRoot(wd); ok {
				for _, file := range envFiles {
					candidate := filepath.Join(root, file)
					if fileExists(candidate) {
						existing = append(existing, candidate)
					}
				}
			}
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type LokiOptions struct {
	AppName string `env:"LOKI_APP_NAME" envDefault:"grc-console"`
	LogPath string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"grc-console"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// UpstreamOptions points at the GGRC server that owns the query API and the object store.
type UpstreamOptions struct {
	BaseURL     string        `env:"GGRC_BASE_URL" envDefault:"http://localhost:8080"`
	QueryPath   string        `env:"GGRC_QUERY_PATH" envDefault:"/query"`
	APIPrefix   string        `env:"GGRC_API_PREFIX" envDefault:"/api"`
	Timeout     time.Duration `env:"GGRC_HTTP_TIMEOUT" envDefault:"15s"`
	AuthToken   string        `env:"GGRC_AUTH_TOKEN"`
	ForwardAuth bool          `env:"GGRC_FORWARD_AUTH" envDefault:"true"`
}

type ObjectCacheOptions struct {
	Storage  string        `env:"OBJECT_CACHE_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL string        `env:"OBJECT_CACHE_REDIS_URL"`
	TTL      time.Duration `env:"OBJECT_CACHE_TTL" envDefault:"10m"`
	// Size caps the in-process cache shared between requests.
	Size int `env:"OBJECT_CACHE_SIZE" envDefault:"4096"`
}

// Validate checks the object cache configuration for errors
func (o *ObjectCacheOptions) Validate() error {
	if o.Storage != "memory" && o.Storage != "redis" {
		return fmt.Errorf("object cache Storage must be 'memory' or 'redis', got '%s'", o.Storage)
	}
	if o.Storage == "redis" && o.RedisURL == "" {
		return fmt.Errorf("object cache RedisURL is required when Storage is 'redis'")
	}
	if o.TTL < 0 {
		return fmt.Errorf("object cache TTL must be non-negative, got %s", o.TTL)
	}
	if o.Size < 0 {
		return fmt.Errorf("object cache Size must be non-negative, got %d", o.Size)
	}
	return nil
}

// OpsGuardOptions hides the health and metrics endpoints from callers that
// are outside OPS_GUARD_NETWORKS and present neither the token nor the basic
// auth pair.
type OpsGuardOptions struct {
	Enabled bool `env:"OPS_GUARD_ENABLED" envDefault:"false"`
	// Comma separated, e.g. "10.0.0.0/8,192.168.1.7/32"
	Networks      []string `env:"OPS_GUARD_NETWORKS" envSeparator:","`
	Token         string   `env:"OPS_GUARD_TOKEN"`
	BasicAuthUser string   `env:"OPS_GUARD_BASIC_AUTH_USER"`
	BasicAuthPass string   `env:"OPS_GUARD_BASIC_AUTH_PASS"`
}

// ParsedNetworks returns the allowed networks. A bare address is read as a
// single host.
func (o *OpsGuardOptions) ParsedNetworks() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(o.Networks))
	for _, raw := range o.Networks {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("OPS_GUARD_NETWORKS: %w", err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func (o *OpsGuardOptions) Validate() error {
	if !o.Enabled {
		return nil
	}
	if _, err := o.ParsedNetworks(); err != nil {
		return err
	}
	if (o.BasicAuthUser == "") != (o.BasicAuthPass == "") {
		return fmt.Errorf("OPS_GUARD_BASIC_AUTH_USER and OPS_GUARD_BASIC_AUTH_PASS must be set together")
	}
	return nil
}

// RateLimitOptions caps requests per client address across all routes.
type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	GlobalRPS int64  `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"50"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

func (o *RateLimitOptions) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.GlobalRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_GLOBAL_RPS must be positive, got %d", o.GlobalRPS)
	}
	if o.Storage != "memory" && o.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", o.Storage)
	}
	if o.Storage == "redis" && o.RedisURL == "" {
		return fmt.Errorf("RATE_LIMIT_REDIS_URL is required when RATE_LIMIT_STORAGE is 'redis'")
	}
	return nil
}

type UnmapOptions struct {
	PageSizes []int `env:"UNMAP_PAGE_SIZES" envDefault:"5,10,15" envSeparator:","`
}

type Configuration struct {
	Loki          LokiOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Upstream      UpstreamOptions
	ObjectCache   ObjectCacheOptions
	Unmap         UnmapOptions
	OpsGuard      OpsGuardOptions
	RateLimit     RateLimitOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS" envDefault:""`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// Looked up on every request; a random uuidv4 is generated when absent
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Falls back to request.RemoteAddr when absent
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// CORSOrigins returns the comma separated ALLOWED_ORIGINS list, defaulting to Origin.
func (c *Configuration) CORSOrigins() []string {
	raw := strings.TrimSpace(c.AllowedOrigins)
	if raw == "" {
		return []string{c.Origin}
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.ObjectCache.Validate(); err != nil {
		return fmt.Errorf("object cache configuration error: %w", err)
	}
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateUnmap(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.OpsGuard.Validate(); err != nil {
		return fmt.Errorf("ops guard configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Loki.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

func (c *Configuration) validateUpstream() error {
	u, err := url.Parse(strings.TrimSpace(c.Upstream.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid GGRC_BASE_URL=%q (expected absolute http(s) URL)", c.Upstream.BaseURL)
	}
	c.Upstream.BaseURL = strings.TrimRight(u.String(), "/")
	if !strings.HasPrefix(c.Upstream.QueryPath, "/") {
		c.Upstream.QueryPath = "/" + c.Upstream.QueryPath
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("invalid GGRC_HTTP_TIMEOUT=%s (expected positive duration)", c.Upstream.Timeout)
	}
	return nil
}

func (c *Configuration) validateUnmap() error {
	if len(c.Unmap.PageSizes) == 0 {
		return fmt.Errorf("UNMAP_PAGE_SIZES must list at least one page size")
	}
	for _, size := range c.Unmap.PageSizes {
		if size <= 0 {
			return fmt.Errorf("invalid UNMAP_PAGE_SIZES entry=%d (expected positive)", size)
		}
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}

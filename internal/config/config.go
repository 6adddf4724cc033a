package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"BV_ENV" default:"development"`

	HTTPPort    int           `envconfig:"BV_HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"BV_HTTP_TIMEOUT" default:"15s"`

	APIRootURL     string        `envconfig:"BV_API_ROOT_URL"`
	RequestTimeout time.Duration `envconfig:"BV_REQUEST_TIMEOUT" default:"30s"`
	RequestsPerSec float64       `envconfig:"BV_REQUESTS_PER_SEC" default:"0"`

	ArchiveDir     string        `envconfig:"BV_ARCHIVE_DIR" default:"./data/books"`
	ChapterRetries int           `envconfig:"BV_CHAPTER_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"BV_RETRY_DELAY" default:"1s"`
	MetadataCache  int64         `envconfig:"BV_METADATA_CACHE" default:"256"`

	ResourceDir           string `envconfig:"BV_RESOURCE_DIR" default:"./data/Resources"`
	ManifestFile          string `envconfig:"BV_MANIFEST_FILE" default:"./data/.files.json"`
	ManifestURL           string `envconfig:"BV_MANIFEST_URL" default:"https://raw.githubusercontent.com/A439-Official/Resources/main/39BookReader/.files.json"`
	ResourceBaseURL       string `envconfig:"BV_RESOURCE_BASE_URL"`
	ResourceWorkers       int    `envconfig:"BV_RESOURCE_WORKERS" default:"4"`
	AllowInsecureFallback bool   `envconfig:"BV_ALLOW_INSECURE_FALLBACK" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"BV_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"BV_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"BV_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.ChapterRetries <= 0 {
		return fmt.Errorf("chapter retries must be positive: %d", c.ChapterRetries)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative: %s", c.RetryDelay)
	}

	if c.ResourceWorkers <= 0 {
		return fmt.Errorf("resource workers must be positive: %d", c.ResourceWorkers)
	}

	if c.RequestsPerSec < 0 {
		return fmt.Errorf("requests per second cannot be negative: %v", c.RequestsPerSec)
	}

	if c.APIRootURL != "" {
		if err := checkURL(c.APIRootURL); err != nil {
			return fmt.Errorf("invalid API root URL: %w", err)
		}
	}

	if err := checkURL(c.ManifestURL); err != nil {
		return fmt.Errorf("invalid manifest URL: %w", err)
	}

	if c.ArchiveDir == "" {
		return fmt.Errorf("archive directory cannot be empty")
	}
	if c.ResourceDir == "" {
		return fmt.Errorf("resource directory cannot be empty")
	}
	if c.ManifestFile == "" {
		return fmt.Errorf("manifest file cannot be empty")
	}

	return nil
}

// ResourceURL returns the remote location of a resource path. Resources live
// next to the manifest unless ResourceBaseURL overrides it.
func (c *Config) ResourceURL(rel string) (string, error) {
	base := c.ResourceBaseURL
	if base == "" {
		base = c.ManifestURL[:strings.LastIndex(c.ManifestURL, "/")]
	}
	return url.JoinPath(base, strings.Split(rel, "/")...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

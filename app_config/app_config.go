package app_config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Backends selectable per concern. "fake" keeps everything in memory and is
// what tests and local runs without credentials use.
const (
	ProviderFake      = "fake"
	ProviderFirebase  = "firebase"
	ProviderCognito   = "cognito"
	ProviderFirestore = "firestore"
	ProviderSQL       = "sql"
	ProviderS3        = "s3"
	ProviderFCM       = "fcm"
	ProviderRedis     = "redis"
)

// This is the app config of the hexfeed server. Secrets stay in .env files,
// only the choice of backends and their non secret knobs live here.
type AppConfig struct {
	CREDENTIAL_PROVIDER string `yaml:"CREDENTIAL_PROVIDER"`
	DOCUMENT_PROVIDER   string `yaml:"DOCUMENT_PROVIDER"`
	BLOB_PROVIDER       string `yaml:"BLOB_PROVIDER"`
	MESSENGER_PROVIDER  string `yaml:"MESSENGER_PROVIDER"`
	SETTINGS_PROVIDER   string `yaml:"SETTINGS_PROVIDER"`

	// Address the api server listens on.
	SERVER_ADDRESS string `yaml:"SERVER_ADDRESS"`
	// Buffer of every subscriber channel of the in process event bus.
	EVENT_BUS_BUFFER int64 `yaml:"EVENT_BUS_BUFFER"`
	// Sessions idle for longer than this are dropped.
	SESSION_IDLE_TTL_SECOND int64 `yaml:"SESSION_IDLE_TTL_SECOND"`
	// Require a Cognito access token on every request except /ping. Only
	// valid with the cognito credential provider.
	REQUIRE_ACCESS_TOKEN bool `yaml:"REQUIRE_ACCESS_TOKEN"`
	// Forward post and comment events to this SQS queue when set.
	EVENT_FORWARD_QUEUE string `yaml:"EVENT_FORWARD_QUEUE"`

	S3_REGION     string `yaml:"S3_REGION"`
	S3_BUCKET     string `yaml:"S3_BUCKET"`
	S3_URL_PREFIX string `yaml:"S3_URL_PREFIX"`

	// Poll interval of sql document listeners when redis is not configured.
	SQL_POLL_INTERVAL_MS int64 `yaml:"SQL_POLL_INTERVAL_MS"`
}

func (c *AppConfig) setDefaults() {
	for _, field := range []*string{&c.CREDENTIAL_PROVIDER, &c.DOCUMENT_PROVIDER, &c.BLOB_PROVIDER, &c.MESSENGER_PROVIDER} {
		if *field == "" {
			*field = ProviderFake
		}
	}
	if c.SETTINGS_PROVIDER == "" {
		c.SETTINGS_PROVIDER = ProviderFake
	}
	if c.SERVER_ADDRESS == "" {
		c.SERVER_ADDRESS = ":8080"
	}
	if c.EVENT_BUS_BUFFER <= 0 {
		c.EVENT_BUS_BUFFER = 100
	}
	if c.SESSION_IDLE_TTL_SECOND <= 0 {
		c.SESSION_IDLE_TTL_SECOND = 24 * 60 * 60
	}
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got %q", name, allowed, value)
}

// Validate checks that every provider is known and that provider specific
// settings are present.
func (c *AppConfig) Validate() error {
	checks := []error{
		oneOf("CREDENTIAL_PROVIDER", c.CREDENTIAL_PROVIDER, ProviderFake, ProviderFirebase, ProviderCognito),
		oneOf("DOCUMENT_PROVIDER", c.DOCUMENT_PROVIDER, ProviderFake, ProviderFirestore, ProviderSQL),
		oneOf("BLOB_PROVIDER", c.BLOB_PROVIDER, ProviderFake, ProviderFirebase, ProviderS3),
		oneOf("MESSENGER_PROVIDER", c.MESSENGER_PROVIDER, ProviderFake, ProviderFCM),
		oneOf("SETTINGS_PROVIDER", c.SETTINGS_PROVIDER, ProviderFake, ProviderRedis),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if c.BLOB_PROVIDER == ProviderS3 && (c.S3_BUCKET == "" || c.S3_URL_PREFIX == "") {
		return errors.New("S3_BUCKET and S3_URL_PREFIX are required by the s3 blob provider")
	}
	if c.REQUIRE_ACCESS_TOKEN && c.CREDENTIAL_PROVIDER != ProviderCognito {
		return errors.New("REQUIRE_ACCESS_TOKEN needs the cognito credential provider")
	}
	return nil
}

// UsesFirebase reports whether any backend needs the Firebase app.
func (c *AppConfig) UsesFirebase() bool {
	return c.CREDENTIAL_PROVIDER == ProviderFirebase ||
		c.DOCUMENT_PROVIDER == ProviderFirestore ||
		c.BLOB_PROVIDER == ProviderFirebase ||
		c.MESSENGER_PROVIDER == ProviderFCM
}

func (c *AppConfig) SessionIdleTTL() time.Duration {
	return time.Duration(c.SESSION_IDLE_TTL_SECOND) * time.Second
}

func (c *AppConfig) SQLPollInterval() time.Duration {
	return time.Duration(c.SQL_POLL_INTERVAL_MS) * time.Millisecond
}

func ParseAppConfig(path string) (AppConfig, error) {
	c := AppConfig{}
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "fail to read app config")
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrap(err, "fail to unmarshal app config")
	}
	c.setDefaults()
	return c, c.Validate()
}

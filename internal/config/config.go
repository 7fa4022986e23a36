package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pausee/internal/engine"
)

// Config holds all configuration (file + env overrides). It is loaded once at startup.
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		LogLevel  string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"server"`

	Params struct {
		Lookback       int    `mapstructure:"lookback"` // minutes
		Timezone       string `mapstructure:"timezone"`
		EmailAlert     int    `mapstructure:"email_alert"`
		PauseCampaigns int    `mapstructure:"pause_campaigns"`
		From           int    `mapstructure:"from"`
		To             int    `mapstructure:"to"`
		Repeat         int    `mapstructure:"repeat"` // minutes
	} `mapstructure:"params"`

	AppsFlyer struct {
		APIToken    string        `mapstructure:"api_token"`
		AppIDs      []string      `mapstructure:"app_ids"`
		BaseURL     string        `mapstructure:"base_url"`
		MediaSource string        `mapstructure:"media_source"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Retries     int           `mapstructure:"retries"`
	} `mapstructure:"appsflyer"`

	GoogleAds struct {
		Credentials string        `mapstructure:"credentials"`
		CustomerID  string        `mapstructure:"customer_id"`
		APIVersion  string        `mapstructure:"api_version"`
		BaseURL     string        `mapstructure:"base_url"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"google_ads"`

	Storage struct {
		Driver string `mapstructure:"driver"` // file | postgres
		Path   string `mapstructure:"path"`
	} `mapstructure:"storage"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Email struct {
		SMTPHost string   `mapstructure:"smtp_host"`
		SMTPPort int      `mapstructure:"smtp_port"`
		Username string   `mapstructure:"username"`
		Password string   `mapstructure:"password"`
		From     string   `mapstructure:"from"`
		To       []string `mapstructure:"to"`
		Messages struct {
			Alert  Message `mapstructure:"alert"`
			Mutate Message `mapstructure:"mutate"`
		} `mapstructure:"messages"`
	} `mapstructure:"email"`

	location *time.Location
}

// Message is an e-mail subject and a text/template body.
type Message struct {
	Title string `mapstructure:"title"`
	Body  string `mapstructure:"body"`
}

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"

	DefaultCredentialsPath = "googleads.yaml"
)

// Load reads the YAML config at path (optional when empty) and applies PAUSEE_* env overrides.
// Any error here is a startup failure.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	setDefaults(v)

	v.SetEnvPrefix("PAUSEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")
	v.SetDefault("params.lookback", 30)
	v.SetDefault("params.timezone", "UTC")
	v.SetDefault("params.repeat", 10)
	// Zero defaults make these keys visible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"params.email_alert", "params.pause_campaigns", "params.from", "params.to",
	} {
		v.SetDefault(key, 0)
	}
	for _, key := range []string{
		"appsflyer.api_token", "google_ads.customer_id", "postgres.host", "postgres.user",
		"postgres.password", "postgres.db_name", "email.smtp_host", "email.username",
		"email.password", "email.from",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("appsflyer.app_ids", []string{})
	v.SetDefault("email.to", []string{})
	v.SetDefault("appsflyer.base_url", "https://hq1.appsflyer.com")
	v.SetDefault("appsflyer.media_source", "googleadwords_int")
	v.SetDefault("appsflyer.timeout", 30*time.Second)
	v.SetDefault("appsflyer.retries", 3)
	v.SetDefault("google_ads.credentials", DefaultCredentialsPath)
	v.SetDefault("google_ads.api_version", "v17")
	v.SetDefault("google_ads.base_url", "https://googleads.googleapis.com")
	v.SetDefault("google_ads.timeout", 30*time.Second)
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "pausedids.json")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 4)
	v.SetDefault("postgres.max_idle_conns", 1)
	v.SetDefault("listener.channel", "pausee_run")
	v.SetDefault("listener.reconnect_seconds", 5)
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.messages.alert.title", "Install alert")
	v.SetDefault("email.messages.alert.body", "{{.Installs}} installs in the last {{.LookbackMinutes}} minutes.")
	v.SetDefault("email.messages.mutate.title", "Campaign status changed")
	v.SetDefault("email.messages.mutate.body",
		"Set {{.Status}}: {{join .Succeeded \", \"}}\nFailed to set {{.Status}}: {{join .Failed \", \"}}\n")
}

func validate(c *Config) error {
	var errs []error
	p := c.Params
	if p.EmailAlert < 0 {
		errs = append(errs, errors.New("params.email_alert must be >= 0"))
	}
	if p.PauseCampaigns <= p.EmailAlert {
		errs = append(errs, fmt.Errorf("params.pause_campaigns (%d) must be greater than params.email_alert (%d)",
			p.PauseCampaigns, p.EmailAlert))
	}
	if p.From < 0 || p.From > 23 || p.To < 0 || p.To > 23 {
		errs = append(errs, fmt.Errorf("params.from/params.to must be hours 0-23, got %d/%d", p.From, p.To))
	}
	if p.Lookback <= 0 {
		errs = append(errs, errors.New("params.lookback must be positive"))
	}
	if p.Repeat <= 0 {
		errs = append(errs, errors.New("params.repeat must be positive"))
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("params.timezone: %w", err))
	}
	c.location = loc
	if len(c.AppsFlyer.AppIDs) == 0 {
		errs = append(errs, errors.New("appsflyer.app_ids must not be empty"))
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path must be set for the file driver"))
		}
	case DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: must be %q or %q", c.Storage.Driver, DriverFile, DriverPostgres))
	}
	if c.AppsFlyer.Retries < 0 {
		c.AppsFlyer.Retries = 0
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	return errors.Join(errs...)
}

// Location is the resolved params.timezone.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c Config) Thresholds() engine.Thresholds {
	return engine.Thresholds{AlertLimit: c.Params.EmailAlert, PauseLimit: c.Params.PauseCampaigns}
}

func (c Config) Window() engine.OperatingWindow {
	return engine.OperatingWindow{FromHour: c.Params.From, ToHour: c.Params.To, Location: c.Location()}
}

func (c Config) Lookback() time.Duration { return time.Duration(c.Params.Lookback) * time.Minute }

func (c Config) RepeatEvery() time.Duration { return time.Duration(c.Params.Repeat) * time.Minute }

// Settings is the per-cycle view handed to the controller.
func (c Config) Settings() engine.Settings {
	return engine.Settings{
		Thresholds: c.Thresholds(),
		Window:     c.Window(),
		AppIDs:     append([]string(nil), c.AppsFlyer.AppIDs...),
		Lookback:   c.Lookback(),
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

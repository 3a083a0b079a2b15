package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type config struct {
	Log      logConfig
	Pages    []pageConfig
	Run      runConfig
	Browser  browserConfig
	Filter   filterConfig
	Output   outputConfig
	Database databaseConfig
	S3       s3Config
	Geo      geoConfig
	Net      netConfig
}

type logConfig struct {
	Pretty bool
	Level  string
}

type pageConfig struct {
	ID        string `mapstructure:"id"`
	OriginURL string `mapstructure:"origin_url"`
	CDNURL    string `mapstructure:"cdn_url"`
}

type runConfig struct {
	Repeats           int           `mapstructure:"repeats"`
	WarmupPasses      int           `mapstructure:"warmup_passes"`
	TrialDelay        time.Duration `mapstructure:"trial_delay"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	MaxImageWait      time.Duration `mapstructure:"max_image_wait"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ScrollDelay       time.Duration `mapstructure:"scroll_delay"`
	Verbose           bool          `mapstructure:"verbose"`
}

type browserConfig struct {
	Headless   bool   `mapstructure:"headless"`
	ChromePath string `mapstructure:"chrome_path"`
	ProxyURL   string `mapstructure:"proxy_url"`
	UserAgent  string `mapstructure:"user_agent"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
}

type filterConfig struct {
	IgnoreHosts []string `mapstructure:"ignore_hosts"`
	AllowHosts  []string `mapstructure:"allow_hosts"`
}

type outputConfig struct {
	Dir  string `mapstructure:"dir"`
	File string `mapstructure:"file"`
}

type databaseConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
}

type s3Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Bucket       string        `mapstructure:"bucket"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Region       string        `mapstructure:"region"`
	Endpoint     string        `mapstructure:"endpoint"`
	AccessKey    string        `mapstructure:"access_key"`
	SecretKey    string        `mapstructure:"secret_key"`
	UsePathStyle bool          `mapstructure:"use_path_style"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
}

type geoConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Token    string `mapstructure:"token"`
	ProxyURL string `mapstructure:"proxy_url"`
}

type netConfig struct {
	OriginURL string        `mapstructure:"origin_url"`
	CDNURL    string        `mapstructure:"cdn_url"`
	Protocol  string        `mapstructure:"protocol"`
	Rounds    int           `mapstructure:"rounds"`
	Interval  time.Duration `mapstructure:"interval"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ProxyURL  string        `mapstructure:"proxy_url"`
}

func setConfig(configPath string) error {
	log.Debug().Msg("setting up config default values")

	viper.SetDefault("log.pretty", true)
	viper.SetDefault("log.level", "info")

	viper.SetDefault("run.repeats", 5)
	viper.SetDefault("run.warmup_passes", 1)
	viper.SetDefault("run.trial_delay", 2*time.Second)
	viper.SetDefault("run.navigation_timeout", 30*time.Second)
	viper.SetDefault("run.max_image_wait", time.Minute)
	viper.SetDefault("run.poll_interval", 200*time.Millisecond)
	viper.SetDefault("run.scroll_delay", 150*time.Millisecond)
	viper.SetDefault("run.verbose", false)

	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.width", 1366)
	viper.SetDefault("browser.height", 900)

	viper.SetDefault("output.dir", "./output")

	viper.SetDefault("s3.enabled", false)
	viper.SetDefault("s3.retry_count", 3)
	viper.SetDefault("s3.retry_wait", time.Second)

	viper.SetDefault("geo.enabled", true)

	viper.SetDefault("net.protocol", "h1")
	viper.SetDefault("net.rounds", 10)
	viper.SetDefault("net.interval", time.Second)
	viper.SetDefault("net.timeout", 30*time.Second)

	viper.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Warn().Str("config_path", configPath).Msg("config file does not exist, creating new one")

		if err := os.WriteFile(configPath, []byte{}, 0o644); err != nil {
			return errors.Wrap(err, "cannot write defaults to config file")
		}

		if err := viper.WriteConfig(); err != nil {
			return errors.Wrap(err, "cannot write defaults to created config file")
		}
	}

	log.Debug().Str("config_path", configPath).Msg("reading config file")

	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "cannot read config file")
	}

	envBindingMap := map[string]string{
		"s3.access_key": "S3_ACCESS_KEY",
		"s3.secret_key": "S3_SECRET_KEY",
		"geo.token":     "GEO_TOKEN",
		"database.connection_string": "DATABASE_CONNECTION_STRING",
	}

	for key, env := range envBindingMap {
		if err := viper.BindEnv(key, env); err != nil {
			return errors.Wrap(err, "cannot bind env variable")
		}
	}

	return nil
}

func loadConfig(configPath string) (*config, error) {
	if err := setConfig(configPath); err != nil {
		return nil, err
	}

	cfg := new(config)
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}

	return cfg, nil
}

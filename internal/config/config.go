package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultScratchDir    = "downloads"
	DefaultVideoEndpoint = "https://snapdownloader.com/tools/instagram-reels-downloader/download"
	DefaultPhotoEndpoint = "https://snapdownloader.com/tools/instagram-photo-downloader/download"
	DefaultFileEndpoint  = "http://smex.unaux.com/tera.php"
	DefaultSweepSchedule = "@every 30m"

	// MaxDeliveryBytes is the largest file the transport accepts.
	MaxDeliveryBytes int64 = 2 * 1024 * 1024 * 1024
	// ResolveTimeout bounds every resolver call.
	ResolveTimeout = 30 * time.Second
	// FetchTimeout bounds one asset download.
	FetchTimeout = 300 * time.Second
	// ProgressStepPercent is the download progress report granularity.
	ProgressStepPercent = 10.0
	// ChunkSize is the read size used when streaming an asset to disk.
	ChunkSize = 8 * 1024
	// PhotoPause separates consecutive photo-set items.
	PhotoPause = time.Second
	// DefaultScratchMaxAge is how old a scratch file must be before the sweeper removes it.
	DefaultScratchMaxAge = 2 * time.Hour
)

type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Telegram  TelegramConfig  `toml:"telegram" yaml:"telegram"`
	Resolvers ResolversConfig `toml:"resolvers" yaml:"resolvers"`
	Scratch   ScratchConfig   `toml:"scratch" yaml:"scratch"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	// Addr is the ops listener (ping/health/metrics). Empty disables it.
	Addr string `toml:"addr" yaml:"addr"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token" yaml:"bot_token" validate:"required"`
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int `toml:"poll_timeout" yaml:"poll_timeout" validate:"gte=0"`
	// APIEndpoint overrides the Bot API endpoint format ("<base>/bot%s/%s").
	// A self-hosted Bot API server is needed for uploads above 50MB.
	APIEndpoint string `toml:"api_endpoint" yaml:"api_endpoint"`
}

type ResolversConfig struct {
	VideoEndpoint string `toml:"video_endpoint" yaml:"video_endpoint" validate:"required,url"`
	PhotoEndpoint string `toml:"photo_endpoint" yaml:"photo_endpoint" validate:"required,url"`
	FileEndpoint  string `toml:"file_endpoint" yaml:"file_endpoint" validate:"required,url"`
	FileAPIKey    string `toml:"file_api_key" yaml:"file_api_key"`
	UserAgent     string `toml:"user_agent" yaml:"user_agent"`
}

type ScratchConfig struct {
	Dir           string `toml:"dir" yaml:"dir" validate:"required"`
	SweepSchedule string `toml:"sweep_schedule" yaml:"sweep_schedule"`
	MaxAge        string `toml:"max_age" yaml:"max_age"`
}

// MaxAgeDuration returns the parsed scratch max age, falling back to the default.
func (c ScratchConfig) MaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.MaxAge))
	if err != nil || d <= 0 {
		return DefaultScratchMaxAge
	}
	return d
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Resolvers: ResolversConfig{
			VideoEndpoint: DefaultVideoEndpoint,
			PhotoEndpoint: DefaultPhotoEndpoint,
			FileEndpoint:  DefaultFileEndpoint,
		},
		Scratch: ScratchConfig{
			Dir:           DefaultScratchDir,
			SweepSchedule: DefaultSweepSchedule,
			MaxAge:        DefaultScratchMaxAge.String(),
		},
	}
}

// Load reads the config file at path (TOML, or YAML by extension), applies
// environment overrides for secrets and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Warnings lists settings that load fine but leave a feature unusable.
func (c Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.Resolvers.FileAPIKey) == "" {
		out = append(out, "resolvers.file_api_key is empty (set TERABOX_API_KEY); TeraBox links will fail to resolve")
	}
	return out
}

func decodeFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TERABOX_API_KEY")); v != "" {
		cfg.Resolvers.FileAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SCRATCH_DIR")); v != "" {
		cfg.Scratch.Dir = v
	}
}

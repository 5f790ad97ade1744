package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel    string            `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Server      ServerConfig      `mapstructure:"server"`
	Session     SessionConfig     `mapstructure:"session"`
	Game        GameConfig        `mapstructure:"game"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

type ServerConfig struct {
	TCPAddress     string `mapstructure:"tcp_address" validate:"required"`
	WSAddress      string `mapstructure:"ws_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	HealthAddress  string `mapstructure:"health_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	MaxConnections int    `mapstructure:"max_connections" validate:"min=1"`
}

type SessionConfig struct {
	PingInterval  time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	GracePeriod   time.Duration `mapstructure:"grace_period" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	CommandRate   float64       `mapstructure:"command_rate" validate:"gt=0"`
	CommandBurst  int           `mapstructure:"command_burst" validate:"min=1"`
}

type GameConfig struct {
	BoardWidth           int `mapstructure:"board_width" validate:"min=1,max=64"`
	BoardHeight          int `mapstructure:"board_height" validate:"min=1,max=64"`
	RoundLimit           int `mapstructure:"round_limit" validate:"min=1"`
	StartRunes           int `mapstructure:"start_runes" validate:"gte=0"`
	StartEnergy          int `mapstructure:"start_energy" validate:"gte=0"`
	MaxEnergy            int `mapstructure:"max_energy" validate:"min=1"`
	MaxPlayers           int `mapstructure:"max_players" validate:"min=1"`
	TilePrice            int `mapstructure:"tile_price" validate:"gte=0"`
	EnergyYieldThreshold int `mapstructure:"energy_yield_threshold" validate:"gte=0"`
	ArtifactEveryNthTile int `mapstructure:"artifact_every_nth_tile" validate:"gte=0"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type LeaderboardConfig struct {
	Driver     string         `mapstructure:"driver" validate:"oneof=sqlite postgres gorm none"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN renders the lib/pq keyword connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.tcp_address", ":7777")
	v.SetDefault("server.ws_address", "")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.health_address", "")
	v.SetDefault("server.metrics_address", "")
	v.SetDefault("server.max_connections", 256)

	v.SetDefault("session.ping_interval", 5*time.Second)
	v.SetDefault("session.timeout", 15*time.Second)
	v.SetDefault("session.grace_period", 60*time.Second)
	v.SetDefault("session.sweep_interval", time.Second)
	v.SetDefault("session.command_rate", 20.0)
	v.SetDefault("session.command_burst", 40)

	v.SetDefault("game.board_width", 8)
	v.SetDefault("game.board_height", 8)
	v.SetDefault("game.round_limit", 20)
	v.SetDefault("game.start_runes", 20)
	v.SetDefault("game.start_energy", 0)
	v.SetDefault("game.max_energy", 3)
	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.tile_price", 10)
	v.SetDefault("game.energy_yield_threshold", 1)
	v.SetDefault("game.artifact_every_nth_tile", 7)

	v.SetDefault("catalog.path", "")

	v.SetDefault("leaderboard.driver", "sqlite")
	v.SetDefault("leaderboard.sqlite_path", "leaderboard.db")
	v.SetDefault("leaderboard.postgres.host", "localhost")
	v.SetDefault("leaderboard.postgres.port", 5432)
}

// Default returns the built-in configuration without touching disk or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("default config does not decode: " + err.Error())
	}
	return &cfg
}

// LoadConfig reads config.yaml from path when present, applies RUNE_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("rune")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the few cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Session.Timeout < cfg.Session.PingInterval {
		return fmt.Errorf("invalid config: session.timeout (%s) must be at least session.ping_interval (%s)",
			cfg.Session.Timeout, cfg.Session.PingInterval)
	}
	return nil
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	EventsURL     string `mapstructure:"EVENTS_URL"`
	TrackURL      string `mapstructure:"TRACK_URL"`
	UploadURL     string `mapstructure:"UPLOAD_URL"`
	UploadToken   string `mapstructure:"UPLOAD_TOKEN"`
	SettingsPath  string `mapstructure:"SETTINGS_PATH"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`

	UploadInterval   time.Duration `mapstructure:"UPLOAD_INTERVAL"`
	UploadBudget     time.Duration `mapstructure:"UPLOAD_BUDGET"`
	PermissionSettle time.Duration `mapstructure:"PERMISSION_SETTLE"`

	AssumeGranted bool `mapstructure:"PERMISSION_ASSUME_GRANTED"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8075")
	viper.SetDefault("EVENTS_URL", "https://track.kronotiming.fr/events")
	viper.SetDefault("TRACK_URL", "https://live.kronotiming.fr/track")
	viper.SetDefault("UPLOAD_URL", "https://live.kronotiming.fr/update-location")
	viper.SetDefault("UPLOAD_TOKEN", "")
	viper.SetDefault("SETTINGS_PATH", "kronotrack-settings.yaml")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("UPLOAD_INTERVAL", "60s")
	viper.SetDefault("UPLOAD_BUDGET", "25s")
	viper.SetDefault("PERMISSION_SETTLE", "600ms")
	viper.SetDefault("PERMISSION_ASSUME_GRANTED", true)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

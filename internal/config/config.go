package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type AudioConfig struct {
	SampleRate    int           `mapstructure:"sample_rate"`
	Channels      int           `mapstructure:"channels"`
	Gain          float64       `mapstructure:"gain"`
	GateThreshold float64       `mapstructure:"gate_threshold"`
	FrameDuration time.Duration `mapstructure:"frame_duration"`
}

// IdentityConfig and ServerConfig feed the standalone backend. The desktop
// shell replaces them with the native storage process.
type IdentityConfig struct {
	UserID      string `mapstructure:"user_id"`
	DisplayName string `mapstructure:"display_name"`
}

type RoomConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	ID         string       `mapstructure:"id"`
	SigningKey string       `mapstructure:"signing_key"`
	Name       string       `mapstructure:"name"`
	Rooms      []RoomConfig `mapstructure:"rooms"`
	Members    []string     `mapstructure:"members"`
}

type JoinConfig struct {
	RoomID   string `mapstructure:"room_id"`
	ServerID string `mapstructure:"server_id"`
}

type Config struct {
	SignalingURL   string         `mapstructure:"signaling_url"`
	ReconnectDelay time.Duration  `mapstructure:"reconnect_delay"`
	StunServers    []string       `mapstructure:"stun_servers"`
	LogLevel       string         `mapstructure:"log_level"`
	StatusAddr     string         `mapstructure:"status_addr"`
	AnnouncePeriod time.Duration  `mapstructure:"announce_period"`
	Audio          AudioConfig    `mapstructure:"audio"`
	Identity       IdentityConfig `mapstructure:"identity"`
	Servers        []ServerConfig `mapstructure:"servers"`
	Join           JoinConfig     `mapstructure:"join"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("signaling_url", "")
	v.SetDefault("reconnect_delay", "2s")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("log_level", "info")
	v.SetDefault("status_addr", "")
	v.SetDefault("announce_period", "60s")
	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.gain", 1.0)
	v.SetDefault("audio.gate_threshold", 0.02)
	v.SetDefault("audio.frame_duration", "20ms")

	v.SetEnvPrefix("hearth")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

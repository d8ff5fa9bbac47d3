package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Order    OrderConfig    `yaml:"order"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	StoreDriverMySQL = "mysql"
	StoreDriverFile  = "file"
)

// StoreConfig selects the persistence variant. The file driver keeps orders,
// stock and shops as JSON documents under DataDir.
type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DataDir string `yaml:"dataDir"`
}

type OrderConfig struct {
	DedupeWindow           time.Duration `yaml:"dedupeWindow"`
	SiblingWindow          time.Duration `yaml:"siblingWindow"`
	ReservationMaxAttempts int           `yaml:"reservationMaxAttempts"`
	CancelledRetention     time.Duration `yaml:"cancelledRetention"`
	TotalTolerance         float64       `yaml:"totalTolerance"`
	PropagationTimeout     time.Duration `yaml:"propagationTimeout"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 3306)
	viper.SetDefault("DB_USER", "bazaar")
	viper.SetDefault("DB_PASSWORD", "secret")
	viper.SetDefault("DB_NAME", "bazaar")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_DRIVER", StoreDriverMySQL)
	viper.SetDefault("STORE_DATA_DIR", "data")
	viper.SetDefault("ORDER_DEDUPE_WINDOW", "30s")
	viper.SetDefault("ORDER_SIBLING_WINDOW", "2m")
	viper.SetDefault("ORDER_RESERVATION_MAX_ATTEMPTS", 2)
	viper.SetDefault("ORDER_CANCELLED_RETENTION", "24h")
	viper.SetDefault("ORDER_TOTAL_TOLERANCE", 0.01)
	viper.SetDefault("ORDER_PROPAGATION_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "order-notifications")
	viper.SetDefault("JWT_SECRET", "")

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"DB_CONN_MAX_LIFETIME",
		"ORDER_DEDUPE_WINDOW",
		"ORDER_SIBLING_WINDOW",
		"ORDER_CANCELLED_RETENTION",
		"ORDER_PROPAGATION_TIMEOUT",
	} {
		d, err := time.ParseDuration(viper.GetString(key))
		if err != nil {
			return nil, err
		}
		durations[key] = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Store: StoreConfig{
			Driver:  viper.GetString("STORE_DRIVER"),
			DataDir: viper.GetString("STORE_DATA_DIR"),
		},
		Order: OrderConfig{
			DedupeWindow:           durations["ORDER_DEDUPE_WINDOW"],
			SiblingWindow:          durations["ORDER_SIBLING_WINDOW"],
			ReservationMaxAttempts: viper.GetInt("ORDER_RESERVATION_MAX_ATTEMPTS"),
			CancelledRetention:     durations["ORDER_CANCELLED_RETENTION"],
			TotalTolerance:         viper.GetFloat64("ORDER_TOTAL_TOLERANCE"),
			PropagationTimeout:     durations["ORDER_PROPAGATION_TIMEOUT"],
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("JWT_SECRET"),
		},
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

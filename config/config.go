package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Tracker   TrackerConfig   `yaml:"tracker"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Log       LogConfig       `yaml:"log"`
}

// TrackerConfig controls the robot register and its inactivity sweep.
type TrackerConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval"     json:"sweep_interval"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" json:"inactivity_timeout"`
	// PositionFormat is "structured" (gps + ekf), "flat" (lat/lon) or "any".
	PositionFormat string `yaml:"position_format" json:"position_format"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
	// AdminPassword seeds the "admin" account when no admin user exists.
	AdminPassword string `yaml:"admin_password"`
}

// MessagingConfig defines the optional bus transport for reports and events.
type MessagingConfig struct {
	Backend          string      `yaml:"backend"` // "none", "mqtt" or "kafka"
	MQTT             MQTTConfig  `yaml:"mqtt"`
	Kafka            KafkaConfig `yaml:"kafka"`
	ReportsTopic     string      `yaml:"reports_topic"`
	EventsTopic      string      `yaml:"events_topic"`
	ReplyTopicPrefix string      `yaml:"reply_topic_prefix"`
	TrackerID        string      `yaml:"tracker_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

func Defaults() *Config {
	return &Config{
		Tracker: TrackerConfig{
			SweepInterval:     5 * time.Second,
			InactivityTimeout: 20 * time.Second,
			PositionFormat:    "structured",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "robottracker.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "robottracker",
				User:     "robottracker",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          5001,
			SessionSecret: "change-me-in-production",
			AdminPassword: "admin",
		},
		Messaging: MessagingConfig{
			Backend: "none",
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "robottracker",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "robottracker",
			},
			ReportsTopic:     "robots.reports",
			EventsTopic:      "robots.events",
			ReplyTopicPrefix: "robots.replies.",
			TrackerID:        "tracker",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Tracker.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the tracker timings and position format.
func (t TrackerConfig) Validate() error {
	if t.SweepInterval <= 0 {
		return fmt.Errorf("tracker.sweep_interval must be positive, got %s", t.SweepInterval)
	}
	if t.InactivityTimeout <= 0 {
		return fmt.Errorf("tracker.inactivity_timeout must be positive, got %s", t.InactivityTimeout)
	}
	switch t.PositionFormat {
	case "", "structured", "flat", "any":
		return nil
	default:
		return fmt.Errorf("tracker.position_format %q is not structured, flat or any", t.PositionFormat)
	}
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

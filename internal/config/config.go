package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"required,gt=0"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SchedulerConfig holds the scheduling business knobs. The reschedule offset
// is a configuration constant, not hard business law.
type SchedulerConfig struct {
	RescheduleOffsetDays   int    `mapstructure:"reschedule_offset_days" validate:"gte=1"`
	FollowUpOffsetDays     int    `mapstructure:"follow_up_offset_days" validate:"gte=0"`
	MaxCollisionProbes     int    `mapstructure:"max_collision_probes" validate:"gte=1"`
	DispatchTimeoutSeconds int    `mapstructure:"dispatch_timeout_seconds"`
	BatchTimeoutSeconds    int    `mapstructure:"batch_timeout_seconds"`
	AutoReschedule         bool   `mapstructure:"auto_reschedule"`
	DetectionCron          string `mapstructure:"detection_cron"`
	ReportCacheSeconds     int    `mapstructure:"report_cache_seconds"`
}

func (c SchedulerConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

func (c SchedulerConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("scheduler.reschedule_offset_days", 7)
	viper.SetDefault("scheduler.follow_up_offset_days", 30)
	viper.SetDefault("scheduler.max_collision_probes", 30)
	viper.SetDefault("scheduler.dispatch_timeout_seconds", 10)
	viper.SetDefault("scheduler.batch_timeout_seconds", 300)
	viper.SetDefault("scheduler.detection_cron", "0 8 * * *")
	viper.SetDefault("scheduler.report_cache_seconds", 60)
}

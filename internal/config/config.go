package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
    App        AppConfig        `mapstructure:"app"`
    Staging    StagingConfig    `mapstructure:"staging"`
    Matcher    MatcherConfig    `mapstructure:"matcher"`
    HungCall   HungCallConfig   `mapstructure:"hung_call"`
    Collector  CollectorConfig  `mapstructure:"collector"`
    Limits     LimitsConfig     `mapstructure:"limits"`
    Lock       LockConfig       `mapstructure:"lock"`
    Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig holds application-level configuration
type AppConfig struct {
    Name        string `mapstructure:"name"`
    Version     string `mapstructure:"version"`
    Environment string `mapstructure:"environment"`
    Debug       bool   `mapstructure:"debug"`
}

// StagingConfig holds the embedded scratch-store configuration.
type StagingConfig struct {
    ScratchDir    string `mapstructure:"scratch_dir"`
    BatchSize     int    `mapstructure:"batch_size"`
    JournalMode   string `mapstructure:"journal_mode"`
    Synchronous   string `mapstructure:"synchronous"`
}

// MatcherConfig holds the 1-to-1 greedy matching pass configuration.
type MatcherConfig struct {
    SeizeTimeToleranceSeconds int64 `mapstructure:"seize_time_tolerance_seconds"`
}

// HungCallConfig holds the hung-call cluster detector configuration.
type HungCallConfig struct {
    MinDurationSeconds int64 `mapstructure:"min_duration_seconds"`
    MinGroupSize       int   `mapstructure:"min_group_size"`
    MaxExemplarsPerSide int  `mapstructure:"max_exemplars_per_side"`
}

// CollectorConfig holds the bounded top-K discrepancy retention
// configuration.
type CollectorConfig struct {
    MaxPerType            int `mapstructure:"max_per_type"`
    MaxDiscrepancyReadout int `mapstructure:"max_discrepancy_readout"`
}

// LimitsConfig holds the job-admission limits of spec.md §6.2/§7.
type LimitsConfig struct {
    MaxFileSizeBytes int64 `mapstructure:"max_file_size_bytes"`
    MaxRowsPerFile   int64 `mapstructure:"max_rows_per_file"`
    AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// LockConfig holds the optional Redis-backed job admission lock.
type LockConfig struct {
    Enabled      bool          `mapstructure:"enabled"`
    Host         string        `mapstructure:"host"`
    Port         int           `mapstructure:"port"`
    Password     string        `mapstructure:"password"`
    DB           int           `mapstructure:"db"`
    LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
}

// MonitoringConfig holds monitoring and observability configuration
type MonitoringConfig struct {
    Metrics MetricsConfig `mapstructure:"metrics"`
    Health  HealthConfig  `mapstructure:"health"`
    Logging LoggingConfig `mapstructure:"logging"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
    Enabled   bool   `mapstructure:"enabled"`
    Port      int    `mapstructure:"port"`
    Path      string `mapstructure:"path"`
    Namespace string `mapstructure:"namespace"`
    Subsystem string `mapstructure:"subsystem"`
}

// HealthConfig holds health check configuration
type HealthConfig struct {
    Enabled       bool   `mapstructure:"enabled"`
    Port          int    `mapstructure:"port"`
    LivenessPath  string `mapstructure:"liveness_path"`
    ReadinessPath string `mapstructure:"readiness_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
    Level  string                 `mapstructure:"level"`
    Format string                 `mapstructure:"format"`
    Output string                 `mapstructure:"output"`
    File   FileLogConfig          `mapstructure:"file"`
    Fields map[string]interface{} `mapstructure:"fields"`
}

// FileLogConfig holds file-based logging configuration
type FileLogConfig struct {
    Enabled    bool   `mapstructure:"enabled"`
    Path       string `mapstructure:"path"`
    MaxSize    int    `mapstructure:"max_size"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAge     int    `mapstructure:"max_age"`
    Compress   bool   `mapstructure:"compress"`
}

// Load loads configuration from file and environment
func Load(configFile string) (*Config, error) {
    if configFile != "" {
        viper.SetConfigFile(configFile)
    } else {
        viper.SetConfigName("config")
        viper.SetConfigType("yaml")
        viper.AddConfigPath("./configs")
        viper.AddConfigPath("/etc/cdr-reconciler")
        viper.AddConfigPath(".")
    }

    // Set environment variable support
    viper.SetEnvPrefix("CDR_RECONCILER")
    viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    viper.AutomaticEnv()

    // Set defaults
    setDefaults()

    // Read configuration
    if err := viper.ReadInConfig(); err != nil {
        if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
            return nil, fmt.Errorf("failed to read config file: %w", err)
        }
        // Config file not found; use defaults and environment
    }

    // Unmarshal into config struct
    var config Config
    if err := viper.Unmarshal(&config); err != nil {
        return nil, fmt.Errorf("failed to unmarshal config: %w", err)
    }

    // Validate configuration
    if err := config.Validate(); err != nil {
        return nil, fmt.Errorf("invalid configuration: %w", err)
    }

    return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
    // App defaults
    viper.SetDefault("app.name", "cdr-reconciler")
    viper.SetDefault("app.version", "1.0.0")
    viper.SetDefault("app.environment", "development")
    viper.SetDefault("app.debug", false)

    // Staging defaults
    viper.SetDefault("staging.scratch_dir", "")
    viper.SetDefault("staging.batch_size", 10000)
    viper.SetDefault("staging.journal_mode", "WAL")
    viper.SetDefault("staging.synchronous", "OFF")

    // Matcher defaults
    viper.SetDefault("matcher.seize_time_tolerance_seconds", 60)

    // Hung-call defaults
    viper.SetDefault("hung_call.min_duration_seconds", 30)
    viper.SetDefault("hung_call.min_group_size", 3)
    viper.SetDefault("hung_call.max_exemplars_per_side", 200)

    // Collector defaults
    viper.SetDefault("collector.max_per_type", 1000)
    viper.SetDefault("collector.max_discrepancy_readout", 5000)

    // Limits defaults
    viper.SetDefault("limits.max_file_size_bytes", 500*1024*1024)
    viper.SetDefault("limits.max_rows_per_file", 2000000)
    viper.SetDefault("limits.allowed_extensions", []string{"csv", "xlsx", "xls", "zip"})

    // Lock defaults
    viper.SetDefault("lock.enabled", false)
    viper.SetDefault("lock.host", "localhost")
    viper.SetDefault("lock.port", 6379)
    viper.SetDefault("lock.db", 0)
    viper.SetDefault("lock.lease_timeout", "30m")

    // Monitoring defaults
    viper.SetDefault("monitoring.metrics.enabled", true)
    viper.SetDefault("monitoring.metrics.port", 9090)
    viper.SetDefault("monitoring.metrics.path", "/metrics")
    viper.SetDefault("monitoring.metrics.namespace", "cdr_reconciler")
    viper.SetDefault("monitoring.health.enabled", true)
    viper.SetDefault("monitoring.health.port", 8080)
    viper.SetDefault("monitoring.health.liveness_path", "/healthz")
    viper.SetDefault("monitoring.health.readiness_path", "/ready")
    viper.SetDefault("monitoring.logging.level", "info")
    viper.SetDefault("monitoring.logging.format", "json")
    viper.SetDefault("monitoring.logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
    if c.Staging.BatchSize <= 0 {
        return fmt.Errorf("staging batch size must be positive")
    }
    if c.Matcher.SeizeTimeToleranceSeconds < 0 {
        return fmt.Errorf("matcher seize time tolerance must not be negative")
    }
    if c.HungCall.MinGroupSize <= 0 {
        return fmt.Errorf("hung call min group size must be positive")
    }
    if c.Collector.MaxPerType <= 0 {
        return fmt.Errorf("collector max per type must be positive")
    }
    if c.Limits.MaxRowsPerFile <= 0 {
        return fmt.Errorf("limits max rows per file must be positive")
    }
    if len(c.Limits.AllowedExtensions) == 0 {
        return fmt.Errorf("limits allowed extensions must not be empty")
    }

    if c.Lock.Enabled {
        if c.Lock.Port <= 0 || c.Lock.Port > 65535 {
            return fmt.Errorf("invalid lock redis port: %d", c.Lock.Port)
        }
    }

    if c.Monitoring.Metrics.Enabled {
        if c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535 {
            return fmt.Errorf("invalid metrics port: %d", c.Monitoring.Metrics.Port)
        }
    }
    if c.Monitoring.Health.Enabled {
        if c.Monitoring.Health.Port <= 0 || c.Monitoring.Health.Port > 65535 {
            return fmt.Errorf("invalid health port: %d", c.Monitoring.Health.Port)
        }
    }

    return nil
}

// GetLockAddr returns the Redis address backing the job admission lock.
func (c *LockConfig) GetLockAddr() string {
    return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
    return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
    return strings.ToLower(c.Environment) == "development"
}

// IsDebug returns true if debug mode is enabled
func (c *AppConfig) IsDebug() bool {
    return c.Debug
}

// Package config holds the flag names, defaults and validation for ippoold.
// Values are resolved by viper from flags, IPPOOL_* environment variables
// and an optional config file, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zinrai/ippool-go/internal/logger"
)

const (
	ConfigFileFlagName      = "config"
	AddressFlagName         = "address"
	RoutePrefixFlagName     = "route-prefix"
	StorageFlagName         = "storage"
	DBURLFlagName           = "database-url"
	MaxOpenConnsFlagName    = "db-max-open-conns"
	MaxIdleConnsFlagName    = "db-max-idle-conns"
	ConnMaxLifetimeFlagName = "db-conn-max-lifetime"
	LogLevelFlagName        = "log-level"
	LogFormatFlagName       = "log-format"
	LogFileFlagName         = "log-file"
	LogMaxSizeFlagName      = "log-max-size"
	LogMaxBackupsFlagName   = "log-max-backups"
	LogMaxAgeFlagName       = "log-max-age"
	LogCompressFlagName     = "log-compress"
	NATSURLFlagName         = "nats-url"
	CORSOriginsFlagName     = "cors-origins"
	ShutdownTimeoutFlagName = "shutdown-timeout"

	EnvPrefix = "IPPOOL"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Address         string
	RoutePrefix     string
	Storage         string
	DBURL           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Log             logger.Config
	NATSURL         string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// BindFlags registers every setting on flags with its default.
func BindFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileFlagName, "", "Path to a YAML config file")
	flags.String(AddressFlagName, ":8080", "Listening address")
	flags.String(RoutePrefixFlagName, "/api", "Path prefix for the API routes")
	flags.String(StorageFlagName, StoragePostgres, "Storage backend: postgres or memory")
	flags.String(DBURLFlagName, "postgres://localhost/ippool?sslmode=disable", "Connection string for the database")
	flags.Int(MaxOpenConnsFlagName, 20, "Maximum number of open database connections")
	flags.Int(MaxIdleConnsFlagName, 5, "Maximum number of idle database connections")
	flags.Duration(ConnMaxLifetimeFlagName, 30*time.Minute, "Maximum lifetime of a database connection")
	flags.String(LogLevelFlagName, "info", "Log level")
	flags.String(LogFormatFlagName, "text", "Log format: text or json")
	flags.String(LogFileFlagName, "", "Also write logs to this file, rotated by size")
	flags.Int(LogMaxSizeFlagName, 100, "Maximum log file size in megabytes before rotation")
	flags.Int(LogMaxBackupsFlagName, 5, "Number of rotated log files to keep")
	flags.Int(LogMaxAgeFlagName, 28, "Days to keep rotated log files")
	flags.Bool(LogCompressFlagName, true, "Gzip rotated log files")
	flags.String(NATSURLFlagName, "", "NATS server URL for change events; empty disables publishing")
	flags.StringSlice(CORSOriginsFlagName, nil, "Allowed CORS origins, * for any")
	flags.Duration(ShutdownTimeoutFlagName, 15*time.Second, "How long to wait for in-flight requests on shutdown")
}

// NewViper returns a viper instance that resolves keys from IPPOOL_*
// environment variables, e.g. IPPOOL_DATABASE_URL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and builds a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString(ConfigFileFlagName); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", file)
		}
	}

	cfg := &Config{
		Address:         v.GetString(AddressFlagName),
		RoutePrefix:     v.GetString(RoutePrefixFlagName),
		Storage:         strings.ToLower(v.GetString(StorageFlagName)),
		DBURL:           v.GetString(DBURLFlagName),
		MaxOpenConns:    v.GetInt(MaxOpenConnsFlagName),
		MaxIdleConns:    v.GetInt(MaxIdleConnsFlagName),
		ConnMaxLifetime: v.GetDuration(ConnMaxLifetimeFlagName),
		Log: logger.Config{
			Level:      v.GetString(LogLevelFlagName),
			Format:     v.GetString(LogFormatFlagName),
			File:       v.GetString(LogFileFlagName),
			MaxSize:    v.GetInt(LogMaxSizeFlagName),
			MaxBackups: v.GetInt(LogMaxBackupsFlagName),
			MaxAge:     v.GetInt(LogMaxAgeFlagName),
			Compress:   v.GetBool(LogCompressFlagName),
		},
		NATSURL:         v.GetString(NATSURLFlagName),
		CORSOrigins:     v.GetStringSlice(CORSOriginsFlagName),
		ShutdownTimeout: v.GetDuration(ShutdownTimeoutFlagName),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBURL == "" {
			return errors.Errorf("%s is required with %s storage", DBURLFlagName, StoragePostgres)
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown %s %q, want %s or %s", StorageFlagName, c.Storage, StoragePostgres, StorageMemory)
	}
	if c.Address == "" {
		return errors.Errorf("%s must not be empty", AddressFlagName)
	}
	if c.ShutdownTimeout < 0 {
		return errors.Errorf("%s must not be negative", ShutdownTimeoutFlagName)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`
	// DatabasePath is the path of the embedded sqlite database file.
	DatabasePath string `mapstructure:"DB_PATH" default:"delivery-verification.db"`
	// RedisURL is the connection URL of the redis instance backing the read cache.
	RedisURL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Remote holds the DHIS2 system-of-record configuration.
	Remote RemoteConfig `mapstructure:",squash"`

	// Sync holds the reconciliation scheduling configuration.
	Sync SyncConfig `mapstructure:",squash"`

	// GPS holds the location validation thresholds.
	GPS GPSConfig `mapstructure:",squash"`

	// Location holds the GPS fix source configuration.
	Location LocationConfig `mapstructure:",squash"`
}

// RemoteConfig holds the connection details for the remote DHIS2 instance.
type RemoteConfig struct {
	// URL is the base URL of the DHIS2 server.
	URL string `mapstructure:"DHIS2_URL" required:"true"`
	// Username is the API username. Empty means no authenticated session yet.
	Username string `mapstructure:"DHIS2_USERNAME"`
	// Password is the API password.
	Password string `mapstructure:"DHIS2_PASSWORD"`
	// ProgramID is the DHIS2 program the verification events belong to.
	ProgramID string `mapstructure:"DHIS2_PROGRAM_ID" default:"VERIFICATION_PROGRAM_ID"`
	// StageID is the program stage of the verification events.
	StageID string `mapstructure:"DHIS2_STAGE_ID" default:"VERIFICATION_STAGE_ID"`
	// Timeout bounds every outbound request to the remote system.
	Timeout time.Duration `mapstructure:"DHIS2_TIMEOUT" default:"30s"`
	// ProxyURL routes outbound requests through an upstream proxy when set.
	ProxyURL string `mapstructure:"DHIS2_PROXY_URL"`
}

// SyncConfig holds the reconciliation scheduling parameters.
type SyncConfig struct {
	// Interval is the base period between reconciliation passes.
	Interval time.Duration `mapstructure:"SYNC_INTERVAL" default:"15m"`
	// MinBackoff is the smallest retry delay after a failed pass.
	MinBackoff time.Duration `mapstructure:"SYNC_MIN_BACKOFF" default:"10s"`
	// MaxBackoff caps the exponential retry delay.
	MaxBackoff time.Duration `mapstructure:"SYNC_MAX_BACKOFF" default:"1h"`
}

// GPSConfig holds the admission thresholds for captured positions.
type GPSConfig struct {
	// MaxAccuracyMeters is the worst acceptable GPS accuracy for a capture.
	MaxAccuracyMeters float64 `mapstructure:"GPS_MAX_ACCURACY_M" default:"50"`
	// MaxDistanceMeters is the farthest acceptable distance from the target facility.
	MaxDistanceMeters float64 `mapstructure:"GPS_MAX_DISTANCE_M" default:"100"`
}

// LocationConfig holds the settings of the on-device GPS source.
type LocationConfig struct {
	// GPSDAddress is the host:port of the local gpsd daemon. Empty disables the source.
	GPSDAddress string `mapstructure:"GPSD_ADDRESS"`
	// FixTimeout bounds how long a first-fix request may wait.
	FixTimeout time.Duration `mapstructure:"GPS_FIX_TIMEOUT" default:"20s"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

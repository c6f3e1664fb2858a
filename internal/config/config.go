package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	// Beamline configures the simulated devices the demo service runs
	// against.
	Beamline struct {
		MotorLowLimit  float64       `env:"MOTOR_LOW_LIMIT" envDefault:"-10"`
		MotorHighLimit float64       `env:"MOTOR_HIGH_LIMIT" envDefault:"10"`
		MotorSettle    time.Duration `env:"MOTOR_SETTLE" envDefault:"0s"`
		DetectorCenter float64       `env:"DETECTOR_CENTER" envDefault:"0"`
		DetectorImax   float64       `env:"DETECTOR_IMAX" envDefault:"1"`
		DetectorSigma  float64       `env:"DETECTOR_SIGMA" envDefault:"1"`
		DetectorNoise  float64       `env:"DETECTOR_NOISE" envDefault:"0"`
		NoiseSeed      uint64        `env:"DETECTOR_NOISE_SEED" envDefault:"1"`
	}
	Optimization struct {
		DefaultMethod    string  `env:"OPT_DEFAULT_METHOD" envDefault:"golden"`
		DefaultTolerance float64 `env:"OPT_DEFAULT_TOLERANCE" envDefault:"0.01"`
		MaxIterations    int     `env:"OPT_MAX_ITERATIONS" envDefault:"0"`
		DefaultAverage   int     `env:"OPT_DEFAULT_AVERAGE" envDefault:"1"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

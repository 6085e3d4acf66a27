package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Generate Generate `mapstructure:"generate"`
	Server   Server   `mapstructure:"server"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Generate holds the synthetic dataset and analysis parameters
type Generate struct {
	Samples          int         `mapstructure:"samples"`
	Centers          [][]float64 `mapstructure:"centers"`
	ClusterStd       float64     `mapstructure:"cluster_std"`
	Seed             uint64      `mapstructure:"seed"`
	NoiseFraction    float64     `mapstructure:"noise_fraction"`
	NoiseSeed        uint64      `mapstructure:"noise_seed"`
	NoiseMaxAttempts int         `mapstructure:"noise_max_attempts"`
	MaxThresholds    int         `mapstructure:"max_thresholds"`
	DensityK         int         `mapstructure:"density_k"`
	TSNEIterations   int         `mapstructure:"tsne_iterations"`
	Compress         bool        `mapstructure:"compress"`
	Previews         bool        `mapstructure:"previews"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".phdash")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("PHDASH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "data")

	// Dataset and analysis defaults match the published dashboard snapshot
	viper.SetDefault("generate.samples", 250)
	viper.SetDefault("generate.centers", [][]float64{
		{-8, -8, -8},
		{8, -8, 8},
		{-8, 8, 8},
		{8, 8, -8},
		{0, 0, 0},
	})
	viper.SetDefault("generate.cluster_std", 1.2)
	viper.SetDefault("generate.seed", 42)
	viper.SetDefault("generate.noise_fraction", 0.10)
	viper.SetDefault("generate.noise_seed", 42)
	viper.SetDefault("generate.noise_max_attempts", 100)
	viper.SetDefault("generate.max_thresholds", 10)
	viper.SetDefault("generate.density_k", 10)
	viper.SetDefault("generate.tsne_iterations", 1000)
	viper.SetDefault("generate.compress", false)
	viper.SetDefault("generate.previews", false)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.cors_origin", "http://localhost:8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("app.data_dir", []string{
		"PHDASH_DATA_DIR",
		"DATA_DIR",
	})

	bindEnvKeys("server.port", []string{
		"PHDASH_PORT",
		"PORT",
	})

	bindEnvKeys("server.cors_origin", []string{
		"PHDASH_CORS_ORIGIN",
		"CORS_ORIGIN",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"PHDASH_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.App.Debug {
		config.Logging.Level = "debug"
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the configuration is usable
func validateConfig(config *Config) error {
	var errors []string

	if config.App.DataDir == "" {
		errors = append(errors, "app.data_dir must not be empty")
	}

	g := config.Generate
	if g.Samples <= 0 {
		errors = append(errors, fmt.Sprintf("generate.samples must be positive, got %d", g.Samples))
	}
	if len(g.Centers) == 0 {
		errors = append(errors, "generate.centers must list at least one center")
	}
	for i, c := range g.Centers {
		if len(c) != len(g.Centers[0]) {
			errors = append(errors, fmt.Sprintf("generate.centers[%d] has %d coordinates, expected %d", i, len(c), len(g.Centers[0])))
		}
	}
	if g.ClusterStd <= 0 {
		errors = append(errors, "generate.cluster_std must be positive")
	}
	if g.NoiseFraction < 0 || g.NoiseFraction > 1 {
		errors = append(errors, fmt.Sprintf("generate.noise_fraction must be within [0, 1], got %g", g.NoiseFraction))
	}
	if g.NoiseMaxAttempts <= 0 {
		errors = append(errors, "generate.noise_max_attempts must be positive")
	}
	if g.MaxThresholds <= 0 {
		errors = append(errors, "generate.max_thresholds must be positive")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", config.Server.Port))
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: text, json", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}

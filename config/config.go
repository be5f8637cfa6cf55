package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de polywhale.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig controla el comportamiento del servicio de polling.
type ServiceConfig struct {
	PollIntervalMinutes int     `yaml:"poll_interval_minutes"`
	WhaleThreshold      float64 `yaml:"whale_threshold"` // USD, default si no hay valor persistido
	InitialFetchHours   int     `yaml:"initial_fetch_hours"`
	FallbackFetchDays   int     `yaml:"fallback_fetch_days"`
	TradesLimit         int     `yaml:"trades_limit"` // máx trades por request, la API admite ≤500
}

// APIConfig contiene el base URL de la Data API y el listen addr del
// servidor HTTP local.
type APIConfig struct {
	DataBase   string `yaml:"data_base"`
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Service.PollIntervalMinutes) * time.Minute
}

// InitialFetchWindow devuelve la ventana corta del fetch inicial.
func (c *Config) InitialFetchWindow() time.Duration {
	return time.Duration(c.Service.InitialFetchHours) * time.Hour
}

// FallbackFetchWindow devuelve la ventana larga de fallback del fetch inicial.
func (c *Config) FallbackFetchWindow() time.Duration {
	return time.Duration(c.Service.FallbackFetchDays) * 24 * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WHALE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Service.WhaleThreshold = f
		}
	}
	if v := os.Getenv("POLYWHALE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Service.PollIntervalMinutes <= 0 {
		cfg.Service.PollIntervalMinutes = 5
	}
	if cfg.Service.WhaleThreshold <= 0 {
		cfg.Service.WhaleThreshold = 10000
	}
	if cfg.Service.InitialFetchHours <= 0 {
		cfg.Service.InitialFetchHours = 24
	}
	if cfg.Service.FallbackFetchDays <= 0 {
		cfg.Service.FallbackFetchDays = 7
	}
	if cfg.Service.TradesLimit <= 0 || cfg.Service.TradesLimit > 500 {
		cfg.Service.TradesLimit = 500
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = "127.0.0.1:5000"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "whale_trades.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

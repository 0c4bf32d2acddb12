package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

const (
	defaultTokenURL = "https://sgaa.cemaden.gov.br/SGAA/rest/controle-token/tokens"
	defaultDataURL  = "https://sws.cemaden.gov.br/PED/rest/pcds/pcds-dados-recentes"
	defaultTideURL  = "https://raw.githubusercontent.com/RafaellaB/Diagramas-de-risco-din-mico/main/tide/mare_calculada_hora_em_hora_ano-completo.csv"
	defaultStations = "261160614A,261160609A,261160623A,261160618A,261160603A"
)

// DefaultRiskStations names the stations the risk table covers unless
// RISK_STATIONS overrides it.
const DefaultRiskStations = "Campina do Barreto,Torreão,RECIFE - APAC,Imbiribeira,Dois Irmãos"

// Archive backends.
const (
	ArchiveCSV    = "csv"
	ArchiveSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// CEMADEN telemetry feed.
	CemadenEnabled  bool
	CemadenEmail    string
	CemadenPassword string
	CemadenTokenURL string
	CemadenDataURL  string
	CemadenUF       string
	CemadenRede     string
	CemadenSensor   string
	CemadenTimeout  time.Duration
	CemadenStations []string

	// RiskStations are the station names the risk table is computed for.
	RiskStations []string

	TideSource   string
	TideCacheTTL time.Duration

	DataDir        string
	ArchiveBackend string
	ArchivePath    string
	ArchiveSeedURL string

	FetchInterval time.Duration
	MissingPolicy domain.MissingPolicy

	DashboardCacheTTL  time.Duration
	DashboardCacheSize int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaRiskTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cemadenTimeout, err := parsePositiveDuration("CEMADEN_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	tideTTL, err := parsePositiveDuration("TIDE_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parsePositiveDuration("FETCH_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	dashboardTTL, err := parsePositiveDuration("DASHBOARD_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseMissingPolicy(os.Getenv("MISSING_TIDE_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid MISSING_TIDE_POLICY: %w", err)
	}

	email := os.Getenv("CEMADEN_EMAIL")
	password := os.Getenv("CEMADEN_PASS")
	cemadenEnabled := email != "" && password != ""
	if v := os.Getenv("CEMADEN_ENABLED"); v != "" {
		cemadenEnabled = v == "true"
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", ".")
	backend := strings.ToLower(sharedcfg.EnvOrDefault("ARCHIVE_BACKEND", ArchiveCSV))

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CemadenEnabled:  cemadenEnabled,
		CemadenEmail:    email,
		CemadenPassword: password,
		CemadenTokenURL: sharedcfg.EnvOrDefault("CEMADEN_TOKEN_URL", defaultTokenURL),
		CemadenDataURL:  sharedcfg.EnvOrDefault("CEMADEN_DATA_URL", defaultDataURL),
		CemadenUF:       sharedcfg.EnvOrDefault("CEMADEN_UF", "PE"),
		CemadenRede:     sharedcfg.EnvOrDefault("CEMADEN_REDE", "11"),
		CemadenSensor:   sharedcfg.EnvOrDefault("CEMADEN_SENSOR", "10"),
		CemadenTimeout:  cemadenTimeout,
		CemadenStations: splitList(sharedcfg.EnvOrDefault("CEMADEN_STATIONS", defaultStations)),

		RiskStations: splitList(sharedcfg.EnvOrDefault("RISK_STATIONS", DefaultRiskStations)),

		TideSource:   sharedcfg.EnvOrDefault("TIDE_SOURCE", defaultTideURL),
		TideCacheTTL: tideTTL,

		DataDir:        dataDir,
		ArchiveBackend: backend,
		ArchivePath:    sharedcfg.EnvOrDefault("ARCHIVE_PATH", defaultArchivePath(backend)),
		ArchiveSeedURL: os.Getenv("ARCHIVE_SEED_URL"),

		FetchInterval: fetchInterval,
		MissingPolicy: policy,

		DashboardCacheTTL:  dashboardTTL,
		DashboardCacheSize: parsePositiveInt("DASHBOARD_CACHE_SIZE", 64),

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRiskTopic: sharedcfg.EnvOrDefault("KAFKA_RISK_TOPIC", "flood-risk-records"),
	}

	if cfg.CemadenEnabled && (cfg.CemadenEmail == "" || cfg.CemadenPassword == "") {
		return nil, errors.New("CEMADEN_ENABLED is true but CEMADEN_EMAIL or CEMADEN_PASS is not set")
	}
	if cfg.CemadenEnabled && len(cfg.CemadenStations) == 0 {
		return nil, errors.New("CEMADEN_STATIONS is required")
	}
	if len(cfg.RiskStations) == 0 {
		return nil, errors.New("RISK_STATIONS is required")
	}
	if cfg.TideSource == "" {
		return nil, errors.New("TIDE_SOURCE is required")
	}
	if cfg.ArchiveBackend != ArchiveCSV && cfg.ArchiveBackend != ArchiveSQLite {
		return nil, fmt.Errorf("invalid ARCHIVE_BACKEND %q (want %s or %s)", cfg.ArchiveBackend, ArchiveCSV, ArchiveSQLite)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaRiskTopic == "" {
		return nil, errors.New("KAFKA_RISK_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func defaultArchivePath(backend string) string {
	if backend == ArchiveSQLite {
		return "resultado_risco_final.db"
	}
	return "resultado_risco_final.csv"
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// splitList splits a comma-separated list, trimming blanks. Station names
// contain spaces, so only surrounding whitespace is removed.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EngineChromem  = "chromem"
	EnginePostgres = "postgres"
)

// OpenAIConfig holds the OpenAI compatible API settings and model names.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
	SimulationModel string `yaml:"simulation_model"`
}

// StorageConfig selects where the indexes and answered questions live.
type StorageConfig struct {
	Engine              string `yaml:"engine"`
	DatabaseURL         string `yaml:"database_url"`
	CollectionDBPath    string `yaml:"collection_db_path"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	TranscriptLog       string `yaml:"transcript_log"`
	SourcesState        string `yaml:"sources_state"`
}

// IngestionConfig configures how blog posts are segmented and refreshed.
type IngestionConfig struct {
	MaxSegmentLength     int           `yaml:"max_segment_length"`
	SourceUpdateInterval time.Duration `yaml:"source_update_interval"`
	GitPrivateKey        string        `yaml:"git_private_key"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	ListenAddress string          `yaml:"listen_address"`
	PersonaName   string          `yaml:"persona_name"`
	CORSOrigins   []string        `yaml:"cors_origins"`
	CallTimeout   time.Duration   `yaml:"call_timeout"`
	// AdminAPIKey guards the ingestion and source routes. They reject every
	// request while it is empty.
	AdminAPIKey   string          `yaml:"admin_api_key"`
	OpenAI        OpenAIConfig    `yaml:"openai"`
	Storage       StorageConfig   `yaml:"storage"`
	Ingestion     IngestionConfig `yaml:"ingestion"`
}

// Load builds the configuration from defaults, the YAML file at path when it
// exists, a .env file when present and finally the environment.
func Load(path string) (*AppConfig, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg)
	applyConfigDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Engine {
	case EnginePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres engine")
		}
	case EngineChromem:
	default:
		return errors.New("unknown vector engine " + c.Storage.Engine)
	}
	return nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		ListenAddress: ":8080",
		PersonaName:   "Shubh",
		CORSOrigins:   []string{"http://localhost:3000"},
		CallTimeout:   2 * time.Minute,
		OpenAI: OpenAIConfig{
			EmbeddingModel:  "text-embedding-3-large",
			CompletionModel: "o1",
			SimulationModel: "gpt-4o-mini",
		},
		Storage: StorageConfig{
			Engine:              EngineChromem,
			CollectionDBPath:    "collections",
			EmbeddingDimensions: 3072,
			TranscriptLog:       "transcripts.json",
			SourcesState:        "sources.json",
		},
		Ingestion: IngestionConfig{
			MaxSegmentLength:     800,
			SourceUpdateInterval: 24 * time.Hour,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = d.ListenAddress
	}
	if cfg.PersonaName == "" {
		cfg.PersonaName = d.PersonaName
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = d.CORSOrigins
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = d.OpenAI.EmbeddingModel
	}
	if cfg.OpenAI.CompletionModel == "" {
		cfg.OpenAI.CompletionModel = d.OpenAI.CompletionModel
	}
	if cfg.OpenAI.SimulationModel == "" {
		cfg.OpenAI.SimulationModel = d.OpenAI.SimulationModel
	}
	if cfg.Storage.Engine == "" {
		cfg.Storage.Engine = d.Storage.Engine
	}
	if cfg.Storage.CollectionDBPath == "" {
		cfg.Storage.CollectionDBPath = d.Storage.CollectionDBPath
	}
	if cfg.Storage.EmbeddingDimensions <= 0 {
		cfg.Storage.EmbeddingDimensions = d.Storage.EmbeddingDimensions
	}
	if cfg.Ingestion.MaxSegmentLength <= 0 {
		cfg.Ingestion.MaxSegmentLength = d.Ingestion.MaxSegmentLength
	}
	if cfg.Ingestion.SourceUpdateInterval <= 0 {
		cfg.Ingestion.SourceUpdateInterval = d.Ingestion.SourceUpdateInterval
	}
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.ListenAddress, "LISTEN_ADDRESS")
	setString(&cfg.PersonaName, "PERSONA_NAME")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	setDuration(&cfg.CallTimeout, "CALL_TIMEOUT")
	setString(&cfg.AdminAPIKey, "ADMIN_API_KEY")

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_API_BASE_URL")
	setString(&cfg.OpenAI.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.OpenAI.CompletionModel, "COMPLETION_MODEL")
	setString(&cfg.OpenAI.SimulationModel, "SIMULATION_MODEL")

	setString(&cfg.Storage.Engine, "VECTOR_ENGINE")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Storage.CollectionDBPath, "COLLECTION_DB_PATH")
	setInt(&cfg.Storage.EmbeddingDimensions, "EMBEDDING_DIMENSIONS")
	setString(&cfg.Storage.TranscriptLog, "TRANSCRIPT_LOG")
	setString(&cfg.Storage.SourcesState, "SOURCES_STATE")

	setInt(&cfg.Ingestion.MaxSegmentLength, "MAX_SEGMENT_LENGTH")
	setDuration(&cfg.Ingestion.SourceUpdateInterval, "SOURCE_UPDATE_INTERVAL")
	setString(&cfg.Ingestion.GitPrivateKey, "GIT_PRIVATE_KEY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package common

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extraction ExtractionConfig
	Translator TranslatorConfig
	NER        NERConfig
	Classifier ClassifierConfig
	Risk       RiskConfig
	Cache      CacheConfig
	Ledger     LedgerConfig
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	Backend string // "sqlite" | "mysql"
	Path    string // sqlite file path
	DSN     string // mysql DSN
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string
}

// ExtractionConfig tunes the OCR stage.
type ExtractionConfig struct {
	Timeout       time.Duration
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
}

// TranslatorConfig tunes the translation stage.
type TranslatorConfig struct {
	Timeout  time.Duration
	Endpoint string // empty -> pass-through translator
}

// ClassifierConfig tunes the document classifier stage.
type ClassifierConfig struct {
	Timeout         time.Duration
	Backend         string // "rules" | "remote"
	Endpoint        string
	ConfidenceFloor float64
}

// NERConfig tunes the entity extractor's model layer.
type NERConfig struct {
	Endpoint   string  // empty -> rules-only extraction
	ModelFloor float64 // minimum model-span confidence
}

// RiskConfig tunes the risk scorer.
type RiskConfig struct {
	DataQualityCharsFloor int
}

// CacheConfig bounds the in-memory translation cache.
type CacheConfig struct {
	TranslationCapacity int
}

// LedgerConfig selects and tunes the ledger backend.
type LedgerConfig struct {
	Timeout  time.Duration
	Backend  string // "local" | "remote"
	Endpoint string
	Identity string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.database.backend", "sqlite")
	v.SetDefault("engine.database.path", "proptrust.db")
	v.SetDefault("engine.database.dsn", "")

	v.SetDefault("engine.server.addr", ":8080")

	v.SetDefault("engine.extraction.timeout_ms", 60_000)
	v.SetDefault("engine.extraction.tesseract_lang", "kan+eng")
	v.SetDefault("engine.extraction.tessdata_dir", "")
	v.SetDefault("engine.extraction.dpi", 300)
	v.SetDefault("engine.extraction.max_pages", 0)

	v.SetDefault("engine.translation.timeout_ms", 30_000)
	v.SetDefault("engine.translation.endpoint", "")

	v.SetDefault("engine.ner.endpoint", "")
	v.SetDefault("engine.ner.model_floor", 0.5)

	v.SetDefault("engine.classifier.timeout_ms", 20_000)
	v.SetDefault("engine.classifier.backend", "rules")
	v.SetDefault("engine.classifier.endpoint", "")
	v.SetDefault("engine.classifier.confidence_floor", 0.5)

	v.SetDefault("engine.risk.data_quality_chars_floor", 200)

	v.SetDefault("engine.cache.translation.capacity", 1024)

	v.SetDefault("engine.ledger.timeout_ms", 30_000)
	v.SetDefault("engine.ledger.backend", "local")
	v.SetDefault("engine.ledger.endpoint", "")
	v.SetDefault("engine.ledger.identity", "proptrust-engine")
}

// LoadConfig reads configuration from the environment. Keys use the dotted
// form (engine.ledger.backend); the matching environment variable replaces
// dots with underscores and uppercases (ENGINE_LEDGER_BACKEND).
func LoadConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ms := func(key string) time.Duration {
		return time.Duration(v.GetInt64(key)) * time.Millisecond
	}

	return &Config{
		Database: DatabaseConfig{
			Backend: v.GetString("engine.database.backend"),
			Path:    v.GetString("engine.database.path"),
			DSN:     v.GetString("engine.database.dsn"),
		},
		Server: ServerConfig{
			Addr: v.GetString("engine.server.addr"),
		},
		Extraction: ExtractionConfig{
			Timeout:       ms("engine.extraction.timeout_ms"),
			TesseractLang: v.GetString("engine.extraction.tesseract_lang"),
			TessdataDir:   v.GetString("engine.extraction.tessdata_dir"),
			DPI:           v.GetInt("engine.extraction.dpi"),
			MaxPages:      v.GetInt("engine.extraction.max_pages"),
		},
		Translator: TranslatorConfig{
			Timeout:  ms("engine.translation.timeout_ms"),
			Endpoint: v.GetString("engine.translation.endpoint"),
		},
		NER: NERConfig{
			Endpoint:   v.GetString("engine.ner.endpoint"),
			ModelFloor: v.GetFloat64("engine.ner.model_floor"),
		},
		Classifier: ClassifierConfig{
			Timeout:         ms("engine.classifier.timeout_ms"),
			Backend:         v.GetString("engine.classifier.backend"),
			Endpoint:        v.GetString("engine.classifier.endpoint"),
			ConfidenceFloor: v.GetFloat64("engine.classifier.confidence_floor"),
		},
		Risk: RiskConfig{
			DataQualityCharsFloor: v.GetInt("engine.risk.data_quality_chars_floor"),
		},
		Cache: CacheConfig{
			TranslationCapacity: v.GetInt("engine.cache.translation.capacity"),
		},
		Ledger: LedgerConfig{
			Timeout:  ms("engine.ledger.timeout_ms"),
			Backend:  v.GetString("engine.ledger.backend"),
			Endpoint: v.GetString("engine.ledger.endpoint"),
			Identity: v.GetString("engine.ledger.identity"),
		},
	}
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Database.Backend == "mysql" && c.Database.DSN == "" {
		return NewAppError(KindBadInput, "CONFIG_ERROR", "ENGINE_DATABASE_DSN is required for the mysql backend", ErrInvalidInput)
	}
	if c.Ledger.Backend == "remote" && c.Ledger.Endpoint == "" {
		return NewAppError(KindBadInput, "CONFIG_ERROR", "ENGINE_LEDGER_ENDPOINT is required for the remote backend", ErrInvalidInput)
	}
	if c.Classifier.Backend == "remote" && c.Classifier.Endpoint == "" {
		return NewAppError(KindBadInput, "CONFIG_ERROR", "ENGINE_CLASSIFIER_ENDPOINT is required for the remote backend", ErrInvalidInput)
	}
	if c.Classifier.ConfidenceFloor < 0 || c.Classifier.ConfidenceFloor > 1 {
		return NewAppError(KindBadInput, "CONFIG_ERROR", "engine.classifier.confidence_floor must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

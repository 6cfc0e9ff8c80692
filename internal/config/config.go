// Package config loads the recognized environment variables (and an
// optional config file) into a typed Config, with flags falling back to
// environment values, generalized to a standalone package since both the
// server and worker processes need the same settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// OCRBackend selects which OCR providers Config.Load will allow the
// engine to use.
type OCRBackend string

const (
	OCRBackendAuto  OCRBackend = "auto"
	OCRBackendCloud OCRBackend = "cloud"
	OCRBackendLocal OCRBackend = "local"
)

// Config is every recognized setting, bound from environment variables
// and, optionally, a config file found on viper's search path.
type Config struct {
	// Storage
	ReceiptStoragePath string
	ObjectStoreEndpoint string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string
	ObjectStoreUseSSL    bool

	// Database
	DatabaseURL string

	// Work queue
	QueueBrokerURL string
	QueuePassword  string
	QueueDB        int
	QueueStream    string
	QueueGroup     string

	// OCR
	TextractFallbackEnabled     bool
	OCRBackend                  OCRBackend
	TesseractConfidenceThreshold float64
	MaxPDFPages                  int

	// Categorization
	LLMAPIKey                    string
	LLMBaseURL                   string
	LLMModel                     string
	LLMInputRatePer1K            float64
	LLMOutputRatePer1K           float64
	CategorizationWebLookupEnabled bool
	CategorizationWebLookupTimeout time.Duration
	CapitalizationThreshold        float64

	// Tax
	HSTRate           float64
	HSTChangeoverDate time.Time

	// HTTP
	ServerAddress string
	ServerDebug   bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	// Logging
	LogLevel string
}

// Load binds the recognized keys from the environment (prefix-free,
// e.g. RECEIPT_STORAGE_PATH) and, if
// present, a receipt-pipeline config file on viper's default search
// paths (./, $HOME/.receipt-pipeline, /etc/receipt-pipeline). Env vars always win over
// the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("receipt-pipeline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.receipt-pipeline")
	v.AddConfigPath("/etc/receipt-pipeline")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	changeover, err := time.Parse("2006-01-02", v.GetString("hst_changeover_date"))
	if err != nil {
		return nil, fmt.Errorf("config: parse hst_changeover_date: %w", err)
	}

	cfg := &Config{
		ReceiptStoragePath:  v.GetString("receipt_storage_path"),
		ObjectStoreEndpoint: v.GetString("object_store_endpoint"),
		ObjectStoreAccessKey: v.GetString("object_store_access_key"),
		ObjectStoreSecretKey: v.GetString("object_store_secret_key"),
		ObjectStoreBucket:    v.GetString("object_store_bucket"),
		ObjectStoreUseSSL:    v.GetBool("object_store_use_ssl"),

		DatabaseURL: v.GetString("database_url"),

		QueueBrokerURL: v.GetString("queue_broker_url"),
		QueuePassword:  v.GetString("queue_password"),
		QueueDB:        v.GetInt("queue_db"),
		QueueStream:    v.GetString("queue_stream"),
		QueueGroup:     v.GetString("queue_group"),

		TextractFallbackEnabled:     v.GetBool("textract_fallback_enabled"),
		OCRBackend:                  OCRBackend(v.GetString("ocr_backend")),
		TesseractConfidenceThreshold: v.GetFloat64("tesseract_confidence_threshold"),
		MaxPDFPages:                  v.GetInt("max_pdf_pages"),

		LLMAPIKey:          v.GetString("llm_api_key"),
		LLMBaseURL:         v.GetString("llm_base_url"),
		LLMModel:           v.GetString("llm_model"),
		LLMInputRatePer1K:  v.GetFloat64("llm_input_rate_per_1k"),
		LLMOutputRatePer1K: v.GetFloat64("llm_output_rate_per_1k"),
		CategorizationWebLookupEnabled: v.GetBool("categorization_web_lookup_enabled"),
		CategorizationWebLookupTimeout: v.GetDuration("categorization_web_lookup_timeout"),
		CapitalizationThreshold:        v.GetFloat64("capitalization_threshold"),

		HSTRate:           v.GetFloat64("hst_rate"),
		HSTChangeoverDate: changeover,

		ServerAddress: v.GetString("server_address"),
		ServerDebug:   v.GetBool("server_debug"),
		ReadTimeout:   v.GetDuration("read_timeout"),
		WriteTimeout:  v.GetDuration("write_timeout"),

		LogLevel: v.GetString("log_level"),
	}

	if !cfg.OCRBackend.valid() {
		return nil, fmt.Errorf("config: ocr_backend must be one of auto, cloud, local, got %q", cfg.OCRBackend)
	}

	return cfg, nil
}

func (b OCRBackend) valid() bool {
	switch b {
	case OCRBackendAuto, OCRBackendCloud, OCRBackendLocal:
		return true
	default:
		return false
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("receipt_storage_path", "/var/lib/receipt-pipeline")
	v.SetDefault("object_store_bucket", "receipts")
	v.SetDefault("object_store_use_ssl", true)

	v.SetDefault("queue_stream", "receipt_tasks")
	v.SetDefault("queue_group", "receipt_workers")

	v.SetDefault("textract_fallback_enabled", true)
	v.SetDefault("ocr_backend", string(OCRBackendAuto))
	v.SetDefault("tesseract_confidence_threshold", 0.96)
	v.SetDefault("max_pdf_pages", 10)

	v.SetDefault("llm_input_rate_per_1k", 0.003)
	v.SetDefault("llm_output_rate_per_1k", 0.015)

	v.SetDefault("categorization_web_lookup_enabled", false)
	v.SetDefault("categorization_web_lookup_timeout", 5*time.Second)
	v.SetDefault("capitalization_threshold", 2500.00)

	// The 15% HST rate and its 2010-07-01 implementation date; the only
	// change-over this pipeline has ever needed to represent.
	v.SetDefault("hst_rate", 0.15)
	v.SetDefault("hst_changeover_date", "2010-07-01")

	v.SetDefault("server_address", ":8080")
	v.SetDefault("server_debug", false)
	v.SetDefault("read_timeout", 30*time.Second)
	v.SetDefault("write_timeout", 5*time.Minute)

	v.SetDefault("log_level", "info")
}

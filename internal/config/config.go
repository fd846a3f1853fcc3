// Package config loads the Config struct that every component in this
// module reads its tunables from, using Viper for file/env layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named in the configuration variable list.
type Config struct {
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Store      StoreConfig      `mapstructure:"store"`
	Language   LanguageConfig   `mapstructure:"language"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// IngestionConfig controls the modality processors.
type IngestionConfig struct {
	TextChunkSize      int  `mapstructure:"text_chunk_size"`
	TextChunkOverlap   int  `mapstructure:"text_chunk_overlap"`
	PDFExtractImages   bool `mapstructure:"pdf_extract_images"`
	PDFMinImageWidth   int  `mapstructure:"pdf_min_image_width"`
	PDFMinImageHeight  int  `mapstructure:"pdf_min_image_height"`
	PDFMaxImagesPerPage int `mapstructure:"pdf_max_images_per_page"`
	OCRBinary          string `mapstructure:"ocr_binary"`
	SpeechToTextBinary string `mapstructure:"speech_to_text_binary"`
	PDFToTextBinary    string `mapstructure:"pdf_to_text_binary"`
	PDFImagesBinary    string `mapstructure:"pdf_images_binary"`
}

func (c IngestionConfig) Validate() error {
	if c.TextChunkSize <= 0 {
		return fmt.Errorf("ingestion.text_chunk_size must be > 0")
	}
	if c.TextChunkOverlap < 0 || c.TextChunkOverlap >= c.TextChunkSize {
		return fmt.Errorf("ingestion.text_chunk_overlap must be >= 0 and < text_chunk_size")
	}
	if c.PDFMaxImagesPerPage <= 0 {
		return fmt.Errorf("ingestion.pdf_max_images_per_page must be > 0")
	}
	return nil
}

// EmbeddingConfig controls the embedding manager.
type EmbeddingConfig struct {
	VectorDim      int           `mapstructure:"vector_dim"`
	BatchSize      int           `mapstructure:"batch_size"`
	CacheEnabled   bool          `mapstructure:"cache_enabled"`
	CacheRedisAddr string        `mapstructure:"cache_redis_addr"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

func (c EmbeddingConfig) Validate() error {
	if c.VectorDim <= 0 {
		return fmt.Errorf("embedding.vector_dim must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be > 0")
	}
	if c.CacheEnabled && strings.TrimSpace(c.CacheRedisAddr) == "" {
		return fmt.Errorf("embedding.cache_redis_addr required when cache_enabled")
	}
	return nil
}

// StoreConfig controls the vector store's durable backing.
type StoreConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	BoltFile       string `mapstructure:"bolt_file"`
	KeywordIndexDir string `mapstructure:"keyword_index_dir"`
	SoftQueueLimit int    `mapstructure:"soft_queue_limit"`
}

func (c StoreConfig) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("store.data_dir required")
	}
	if c.SoftQueueLimit <= 0 {
		return fmt.Errorf("store.soft_queue_limit must be > 0")
	}
	return nil
}

// LanguageConfig controls the language service.
type LanguageConfig struct {
	TranslationEnabled bool   `mapstructure:"translation_enabled"`
	TranslationURL     string `mapstructure:"translation_url"`
	DetectionFloor     float64 `mapstructure:"detection_floor"`
}

func (c LanguageConfig) Validate() error {
	if c.TranslationEnabled && strings.TrimSpace(c.TranslationURL) == "" {
		return fmt.Errorf("language.translation_url required when translation_enabled")
	}
	if c.DetectionFloor < 0 || c.DetectionFloor > 1 {
		return fmt.Errorf("language.detection_floor must be in [0,1]")
	}
	return nil
}

// RetrievalConfig controls the query analyzer and cross-modal retriever.
type RetrievalConfig struct {
	DefaultTopK           int `mapstructure:"default_top_k"`
	MaxTopK               int `mapstructure:"max_top_k"`
	MaxRetrievalIterations int `mapstructure:"max_retrieval_iterations"`
}

func (c RetrievalConfig) Validate() error {
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("retrieval.default_top_k must be > 0")
	}
	if c.MaxTopK < c.DefaultTopK {
		return fmt.Errorf("retrieval.max_top_k must be >= default_top_k")
	}
	if c.MaxRetrievalIterations <= 0 {
		return fmt.Errorf("retrieval.max_retrieval_iterations must be > 0")
	}
	return nil
}

// ConfidenceConfig surfaces the single operator-facing knob: the strategist's
// Medium/REFUSE boundary. It never changes the scorer's fixed weights or
// High/Medium thresholds (see DESIGN.md Open Question 3).
type ConfidenceConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

func (c ConfidenceConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("confidence.threshold must be in [0,1]")
	}
	return nil
}

// LLMConfig controls the provider fallback chain.
type LLMConfig struct {
	ProviderOrder []string          `mapstructure:"provider_order"`
	Providers     map[string]LLMProvider `mapstructure:"providers"`
	DeadlineMs    int64             `mapstructure:"deadline_ms"`
}

// LLMProvider is one entry in the fallback chain.
type LLMProvider struct {
	Type    string `mapstructure:"type"` // openai or ollama
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	ChatModel string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c LLMConfig) Validate() error {
	if len(c.ProviderOrder) == 0 {
		return fmt.Errorf("llm.provider_order must name at least one provider")
	}
	for _, name := range c.ProviderOrder {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("llm.provider_order names %q which has no llm.providers entry", name)
		}
	}
	if c.DeadlineMs <= 0 {
		return fmt.Errorf("llm.deadline_ms must be > 0")
	}
	return nil
}

// TelemetryConfig controls the metrics registry.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (c TelemetryConfig) Validate() error { return nil }

// Validate aggregates every section's Validate() into one error.
func (c Config) Validate() error {
	var errs []string
	checks := []error{
		c.Ingestion.Validate(),
		c.Embedding.Validate(),
		c.Store.Validate(),
		c.Language.Validate(),
		c.Retrieval.Validate(),
		c.Confidence.Validate(),
		c.LLM.Validate(),
		c.Telemetry.Validate(),
	}
	for _, err := range checks {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from path (or the default search locations when
// path is empty), applies defaults, overlays NEWSER_-style environment
// variables under the MINDWEAVE_ prefix, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		exe, err := os.Executable()
		if err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, ".."))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("MINDWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingestion.text_chunk_size", 500)
	v.SetDefault("ingestion.text_chunk_overlap", 50)
	v.SetDefault("ingestion.pdf_extract_images", true)
	v.SetDefault("ingestion.pdf_min_image_width", 100)
	v.SetDefault("ingestion.pdf_min_image_height", 100)
	v.SetDefault("ingestion.pdf_max_images_per_page", 10)
	v.SetDefault("ingestion.ocr_binary", "tesseract")
	v.SetDefault("ingestion.speech_to_text_binary", "whisper")
	v.SetDefault("ingestion.pdf_to_text_binary", "pdftotext")
	v.SetDefault("ingestion.pdf_images_binary", "pdfimages")

	v.SetDefault("embedding.vector_dim", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.cache_enabled", false)
	v.SetDefault("embedding.cache_ttl", 10*time.Minute)

	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.bolt_file", "vectors.db")
	v.SetDefault("store.keyword_index_dir", "keyword.bleve")
	v.SetDefault("store.soft_queue_limit", 1000)

	v.SetDefault("language.translation_enabled", true)
	v.SetDefault("language.translation_url", "http://localhost:5000")
	v.SetDefault("language.detection_floor", 0.5)

	v.SetDefault("retrieval.default_top_k", 5)
	v.SetDefault("retrieval.max_top_k", 20)
	v.SetDefault("retrieval.max_retrieval_iterations", 2)

	v.SetDefault("confidence.threshold", 0.4)

	v.SetDefault("llm.provider_order", []string{"openai"})
	v.SetDefault("llm.providers.openai.type", "openai")
	v.SetDefault("llm.deadline_ms", 120000)

	v.SetDefault("telemetry.enabled", true)
}

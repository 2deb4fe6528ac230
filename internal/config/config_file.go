package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors Config but with pointer fields: only keys actually
// present in the YAML document override what Load already resolved from
// the environment.
type fileOverlay struct {
	APIPort     *string `yaml:"api_port"`
	LogLevel    *string `yaml:"log_level"`
	MetricsPort *string `yaml:"metrics_port"`

	QdrantURL        *string `yaml:"qdrant_url"`
	QdrantCollection *string `yaml:"qdrant_collection"`

	Neo4jURI           *string `yaml:"neo4j_uri"`
	Neo4jUsername      *string `yaml:"neo4j_username"`
	Neo4jPassword      *string `yaml:"neo4j_password"`
	Neo4jDatabase      *string `yaml:"neo4j_database"`
	Neo4jFulltextIndex *string `yaml:"neo4j_fulltext_index"`

	OllamaURL        *string `yaml:"ollama_url"`
	OllamaEmbedModel *string `yaml:"ollama_embed_model"`
	OllamaChatModel  *string `yaml:"ollama_chat_model"`

	PostgresDSN *string `yaml:"postgres_dsn"`

	NATSURL            *string `yaml:"nats_url"`
	NATSHistorySubject *string `yaml:"nats_history_subject"`

	IdentityVerifyURL *string `yaml:"identity_verify_url"`

	SimilarityThreshold  *float64 `yaml:"similarity_threshold"`
	MaxChunksPerDocument *int     `yaml:"max_chunks_per_document"`
	RRFK                 *int     `yaml:"rrf_k"`
	MinResultsThreshold  *int     `yaml:"min_results_threshold"`
	LLMTimeoutMs         *int     `yaml:"llm_timeout_ms"`
	CacheTTLSeconds      *int     `yaml:"cache_ttl_seconds"`

	APIRateLimitRPS       *float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst     *int     `yaml:"api_rate_limit_burst"`
	MaxConcurrentRequests *int     `yaml:"max_concurrent_requests"`
	BackpressureTimeoutMs *int     `yaml:"backpressure_timeout_ms"`
}

// LoadFile reads a YAML config overlay. Missing keys are left untouched by
// mergeOverlay, so operators can ship a partial file.
func LoadFile(path string) (fileOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}, fmt.Errorf("read config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fileOverlay{}, fmt.Errorf("parse config file: %w", err)
	}
	return overlay, nil
}

func mergeOverlay(cfg Config, overlay fileOverlay) Config {
	setString(&cfg.APIPort, overlay.APIPort)
	setString(&cfg.LogLevel, overlay.LogLevel)
	setString(&cfg.MetricsPort, overlay.MetricsPort)

	setString(&cfg.QdrantURL, overlay.QdrantURL)
	setString(&cfg.QdrantCollection, overlay.QdrantCollection)

	setString(&cfg.Neo4jURI, overlay.Neo4jURI)
	setString(&cfg.Neo4jUsername, overlay.Neo4jUsername)
	setString(&cfg.Neo4jPassword, overlay.Neo4jPassword)
	setString(&cfg.Neo4jDatabase, overlay.Neo4jDatabase)
	setString(&cfg.Neo4jFulltextIndex, overlay.Neo4jFulltextIndex)

	setString(&cfg.OllamaURL, overlay.OllamaURL)
	setString(&cfg.OllamaEmbedModel, overlay.OllamaEmbedModel)
	setString(&cfg.OllamaChatModel, overlay.OllamaChatModel)

	setString(&cfg.PostgresDSN, overlay.PostgresDSN)

	setString(&cfg.NATSURL, overlay.NATSURL)
	setString(&cfg.NATSHistorySubject, overlay.NATSHistorySubject)

	setString(&cfg.IdentityVerifyURL, overlay.IdentityVerifyURL)

	setFloat(&cfg.SimilarityThreshold, overlay.SimilarityThreshold)
	setInt(&cfg.MaxChunksPerDocument, overlay.MaxChunksPerDocument)
	setInt(&cfg.RRFK, overlay.RRFK)
	setInt(&cfg.MinResultsThreshold, overlay.MinResultsThreshold)
	setInt(&cfg.LLMTimeoutMs, overlay.LLMTimeoutMs)
	setInt(&cfg.CacheTTLSeconds, overlay.CacheTTLSeconds)

	setFloat(&cfg.APIRateLimitRPS, overlay.APIRateLimitRPS)
	setInt(&cfg.APIRateLimitBurst, overlay.APIRateLimitBurst)
	setInt(&cfg.MaxConcurrentRequests, overlay.MaxConcurrentRequests)
	setInt(&cfg.BackpressureTimeoutMs, overlay.BackpressureTimeoutMs)

	return cfg
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

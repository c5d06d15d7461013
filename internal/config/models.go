package config

import (
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
)

// LLMConfig represents the configuration for the classifier model
type LLMConfig struct {
	Provider       string
	Timeout        time.Duration
	MaxSnippetSize int
}

// EmbeddingConfig represents the configuration for the embedding model
type EmbeddingConfig struct {
	Provider  string
	Dimension int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region           string
	ModelID          string
	EmbeddingModelID string
	MaxTokens        int
	Temperature      float32
	TopP             float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey         string
	ModelName      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	TopP           float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ModelName      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float32
	TopP           float32
}

// MemoryConfig represents the configuration for the vector memory
type MemoryConfig struct {
	Type               string
	Path               string
	Compress           bool
	Timeout            time.Duration
	LearnFromDecisions bool
	Qdrant             QdrantConfig
}

// QdrantConfig represents the connection settings of a Qdrant server
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// StoreConfig represents the configuration for the record store
type StoreConfig struct {
	Type             string
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
	Retention        time.Duration
	CleanupFrequency time.Duration
}

// GmailConfig represents the OAuth client settings of the Gmail mailbox
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	User         string
	Window       time.Duration
}

// IntakeConfig represents the configuration for the SMTP intake listener
type IntakeConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	BufferSize      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// ServerConfig represents the configuration for the HTTP API
type ServerConfig struct {
	Enabled         bool
	ListenAddress   string
	ShutdownTimeout time.Duration
}

// SchedulerConfig represents the configuration for periodic batch runs
type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	Owners    []string
	AutoMode  bool
	MaxEmails int
}

// LoggingConfig represents the logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.GetString("llm.provider"),
		Timeout:        c.duration("llm.timeout"),
		MaxSnippetSize: c.GetInt("llm.max_snippet_size"),
	}
}

// GetEmbedding returns the embedding configuration
func (c *Config) GetEmbedding() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:  c.GetString("embedding.provider"),
		Dimension: c.GetInt("embedding.dimension"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:           c.GetString("bedrock.region"),
		ModelID:          c.GetString("bedrock.model_id"),
		EmbeddingModelID: c.GetString("bedrock.embedding_model_id"),
		MaxTokens:        c.GetInt("bedrock.max_tokens"),
		Temperature:      float32(c.GetFloat64("bedrock.temperature")),
		TopP:             float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:         c.GetString("gemini.api_key"),
		ModelName:      c.GetString("gemini.model_name"),
		EmbeddingModel: c.GetString("gemini.embedding_model"),
		MaxTokens:      c.GetInt("gemini.max_tokens"),
		Temperature:    float32(c.GetFloat64("gemini.temperature")),
		TopP:           float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		BaseURL:        c.GetString("openai.base_url"),
		ModelName:      c.GetString("openai.model_name"),
		EmbeddingModel: c.GetString("openai.embedding_model"),
		MaxTokens:      c.GetInt("openai.max_tokens"),
		Temperature:    float32(c.GetFloat64("openai.temperature")),
		TopP:           float32(c.GetFloat64("openai.top_p")),
	}
}

// GetScoring returns the validated scoring configuration
func (c *Config) GetScoring() (core.ScoringConfig, error) {
	cfg := core.ScoringConfig{
		WeightLLM:                c.GetFloat64("scoring.weight_llm"),
		WeightVector:             c.GetFloat64("scoring.weight_vector"),
		WeightRule:               c.GetFloat64("scoring.weight_rule"),
		SimilarityBoostThreshold: c.GetFloat64("scoring.similarity_boost_threshold"),
		SimilarityBonus:          c.GetFloat64("scoring.similarity_bonus"),
		AutoExecuteThreshold:     c.GetFloat64("scoring.auto_execute_threshold"),
		MemoryInfluenceThreshold: c.GetFloat64("scoring.memory_influence_threshold"),
		TopK:                     c.GetInt("scoring.top_k"),
	}
	if err := cfg.Validate(); err != nil {
		return core.ScoringConfig{}, err
	}
	return cfg, nil
}

// GetProtectedDomains returns the sender domains whose mail is never deleted automatically
func (c *Config) GetProtectedDomains() []string {
	return c.GetStringSlice("scoring.protected_domains")
}

// GetPipeline returns the batch orchestration configuration
func (c *Config) GetPipeline() core.PipelineConfig {
	return core.PipelineConfig{
		Concurrency:        c.GetInt("pipeline.concurrency"),
		StepTimeout:        c.duration("pipeline.step_timeout"),
		DedupWindow:        c.duration("pipeline.dedup_window"),
		StatsWindow:        c.duration("pipeline.stats_window"),
		ReviewLimit:        c.GetInt("pipeline.review_limit"),
		LearnFromDecisions: c.GetBool("memory.learn_from_decisions"),
	}
}

// GetMemory returns the vector memory configuration
func (c *Config) GetMemory() MemoryConfig {
	return MemoryConfig{
		Type:               c.GetString("memory.type"),
		Path:               c.GetString("memory.path"),
		Compress:           c.GetBool("memory.compress"),
		Timeout:            c.duration("memory.timeout"),
		LearnFromDecisions: c.GetBool("memory.learn_from_decisions"),
		Qdrant: QdrantConfig{
			Host:       c.GetString("memory.qdrant.host"),
			Port:       c.GetInt("memory.qdrant.port"),
			APIKey:     c.GetString("memory.qdrant.api_key"),
			UseTLS:     c.GetBool("memory.qdrant.use_tls"),
			Collection: c.GetString("memory.qdrant.collection"),
		},
	}
}

// GetStore returns the record store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:             c.GetString("store.type"),
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		PostgresDSN:      c.GetString("store.postgres_dsn"),
		Retention:        c.duration("store.retention"),
		CleanupFrequency: c.duration("store.cleanup_frequency"),
	}
}

// GetMailProvider returns the configured mailbox provider name
func (c *Config) GetMailProvider() string {
	return c.GetString("mail.provider")
}

// GetGmail returns the Gmail OAuth client configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		ClientID:     c.GetString("gmail.client_id"),
		ClientSecret: c.GetString("gmail.client_secret"),
		User:         c.GetString("gmail.user"),
		Window:       c.duration("gmail.window"),
	}
}

// GetIntake returns the SMTP intake configuration
func (c *Config) GetIntake() IntakeConfig {
	return IntakeConfig{
		ListenAddress:   c.GetString("intake.listen_address"),
		Domain:          c.GetString("intake.domain"),
		MaxMessageBytes: c.v.GetInt64("intake.max_message_bytes"),
		BufferSize:      c.GetInt("intake.buffer_size"),
		ReadTimeout:     c.duration("intake.read_timeout"),
		WriteTimeout:    c.duration("intake.write_timeout"),
	}
}

// GetServer returns the HTTP API configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Enabled:         c.GetBool("server.enabled"),
		ListenAddress:   c.GetString("server.listen_address"),
		ShutdownTimeout: c.duration("server.shutdown_timeout"),
	}
}

// GetScheduler returns the scheduler configuration
func (c *Config) GetScheduler() SchedulerConfig {
	return SchedulerConfig{
		Enabled:   c.GetBool("scheduler.enabled"),
		Interval:  c.duration("scheduler.interval"),
		Owners:    c.GetStringSlice("scheduler.owners"),
		AutoMode:  c.GetBool("scheduler.auto_mode"),
		MaxEmails: c.GetInt("scheduler.max_emails"),
	}
}

// GetLogging returns the logger configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// duration reads a duration key, yielding zero for unparsable values
func (c *Config) duration(key string) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return 0
	}
	return d
}

// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the configuration tree for the research agent
// and the load/expand/default/validate pipeline it goes through.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the root configuration for a scout process.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
	Server        ServerConfig        `yaml:"server,omitempty"`
	LLM           LLMConfig           `yaml:"llm,omitempty"`
	Embedder      EmbedderConfig      `yaml:"embedder,omitempty"`
	Vector        VectorConfig        `yaml:"vector,omitempty"`
	Keyword       KeywordConfig       `yaml:"keyword,omitempty"`
	Retriever     RetrieverConfig     `yaml:"retriever,omitempty"`
	Reasoning     ReasoningConfig     `yaml:"reasoning,omitempty"`
	Memory        MemoryConfig        `yaml:"memory,omitempty"`
	Session       SessionConfig       `yaml:"session,omitempty"`
	Tools         ToolsConfig         `yaml:"tools,omitempty"`
	Ingest        IngestConfig        `yaml:"ingest,omitempty"`
	Trace         TraceConfig         `yaml:"trace,omitempty"`
}

// ProcessConfigPipeline runs the standard processing order on a decoded
// config: defaults first, then validation.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a config with every default applied, suitable
// for zero-config local runs (embedded vector store, in-memory keyword
// index, in-memory sessions).
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
	c.Keyword.SetDefaults()
	c.Retriever.SetDefaults()
	c.Reasoning.SetDefaults()
	c.Memory.SetDefaults()
	c.Session.SetDefaults()
	c.Tools.SetDefaults()
	c.Ingest.SetDefaults()
	c.Trace.SetDefaults()
}

func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"logging", &c.Logging},
		{"observability", &c.Observability},
		{"server", &c.Server},
		{"llm", &c.LLM},
		{"embedder", &c.Embedder},
		{"vector", &c.Vector},
		{"keyword", &c.Keyword},
		{"retriever", &c.Retriever},
		{"reasoning", &c.Reasoning},
		{"memory", &c.Memory},
		{"session", &c.Session},
		{"tools", &c.Tools},
		{"ingest", &c.Ingest},
		{"trace", &c.Trace},
	}

	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s validation failed: %w", s.name, err)
		}
	}
	return nil
}

// ============================================================================
// LOGGING
// ============================================================================

type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "simple" (level + message) or "verbose" (adds timestamp).
	Format string `yaml:"format,omitempty"`

	// Output is "stderr", "stdout", or a file path.
	Output string `yaml:"output,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	return nil
}

// ============================================================================
// OBSERVABILITY
// ============================================================================

type TracesConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"` // otlp or stdout
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty"`
}

type MetricsConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

type ObservabilityConfig struct {
	Traces  TracesConfig  `yaml:"traces,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.Traces.Exporter == "" {
		c.Traces.Exporter = "otlp"
	}
	if c.Traces.Endpoint == "" {
		c.Traces.Endpoint = "localhost:4317"
	}
	if c.Traces.SamplingRate == 0 {
		c.Traces.SamplingRate = 1.0
	}
	if c.Traces.ServiceName == "" {
		c.Traces.ServiceName = "scout"
	}
	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
}

func (c *ObservabilityConfig) Validate() error {
	switch c.Traces.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("invalid traces exporter: %s", c.Traces.Exporter)
	}
	if c.Traces.SamplingRate < 0 || c.Traces.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in [0,1], got %v", c.Traces.SamplingRate)
	}
	return nil
}

// ============================================================================
// SERVER
// ============================================================================

type ServerConfig struct {
	Host         string   `yaml:"host,omitempty"`
	Port         int      `yaml:"port,omitempty"`
	CORSOrigins  []string `yaml:"cors_origins,omitempty"`
	ReadTimeout  Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(30 * time.Second)
	}
	if c.WriteTimeout == 0 {
		// Streaming responses stay open well past a normal request.
		c.WriteTimeout = Duration(120 * time.Second)
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================================================
// LLM (reasoning backend provider)
// ============================================================================

const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
	LLMProviderGemini    = "gemini"
	LLMProviderOllama    = "ollama"
)

type LLMConfig struct {
	Provider    string   `yaml:"provider,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	APIKey      string   `yaml:"api_key,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	MaxRetries  int      `yaml:"max_retries,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	// Auto-detect provider from environment if not set
	if c.Provider == "" {
		c.Provider = detectLLMProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}

	if c.BaseURL == "" && c.Provider == LLMProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}

	if c.Timeout == 0 {
		c.Timeout = Duration(60 * time.Second)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.7)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderGemini, LLMProviderOllama:
	default:
		return fmt.Errorf("invalid llm provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be in [0,2], got %v", *c.Temperature)
	}
	return nil
}

func detectLLMProviderFromEnv() string {
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		return LLMProviderOpenAI
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return LLMProviderAnthropic
	case os.Getenv("GEMINI_API_KEY") != "":
		return LLMProviderGemini
	default:
		return LLMProviderOllama
	}
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case LLMProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// ============================================================================
// EMBEDDER
// ============================================================================

const (
	EmbedderProviderOpenAI = "openai"
	EmbedderProviderOllama = "ollama"
)

type EmbedderConfig struct {
	Provider  string   `yaml:"provider,omitempty"`
	Model     string   `yaml:"model,omitempty"`
	APIKey    string   `yaml:"api_key,omitempty"`
	BaseURL   string   `yaml:"base_url,omitempty"`
	Dimension int      `yaml:"dimension,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
	BatchSize int      `yaml:"batch_size,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		if os.Getenv("OPENAI_API_KEY") != "" {
			c.Provider = EmbedderProviderOpenAI
		} else {
			c.Provider = EmbedderProviderOllama
		}
	}
	if c.Model == "" {
		switch c.Provider {
		case EmbedderProviderOpenAI:
			c.Model = "text-embedding-3-small"
		case EmbedderProviderOllama:
			c.Model = "nomic-embed-text"
		}
	}
	if c.APIKey == "" && c.Provider == EmbedderProviderOpenAI {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BaseURL == "" && c.Provider == EmbedderProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Dimension == 0 {
		switch c.Provider {
		case EmbedderProviderOpenAI:
			c.Dimension = 1536
		default:
			c.Dimension = 768
		}
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case EmbedderProviderOpenAI, EmbedderProviderOllama:
	default:
		return fmt.Errorf("invalid embedder provider: %s", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive, got %d", c.Dimension)
	}
	return nil
}

// ============================================================================
// VECTOR STORE
// ============================================================================

const (
	VectorProviderChromem  = "chromem"
	VectorProviderQdrant   = "qdrant"
	VectorProviderPinecone = "pinecone"
)

type VectorConfig struct {
	Provider   string `yaml:"provider,omitempty"`
	Collection string `yaml:"collection,omitempty"`

	// Path enables chromem persistence; empty means in-memory.
	Path string `yaml:"path,omitempty"`

	// Host/Port/UseTLS configure qdrant.
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`

	// APIKey/IndexHost configure pinecone (APIKey is shared with qdrant).
	APIKey    string `yaml:"api_key,omitempty"`
	IndexHost string `yaml:"index_host,omitempty"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = VectorProviderChromem
	}
	if c.Collection == "" {
		c.Collection = "scout"
	}
	if c.Provider == VectorProviderQdrant {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case VectorProviderChromem, VectorProviderQdrant, VectorProviderPinecone:
	default:
		return fmt.Errorf("invalid vector provider: %s", c.Provider)
	}
	if c.Provider == VectorProviderPinecone {
		if c.APIKey == "" {
			return fmt.Errorf("pinecone requires api_key")
		}
		if c.IndexHost == "" {
			return fmt.Errorf("pinecone requires index_host")
		}
	}
	return nil
}

// ============================================================================
// KEYWORD INDEX
// ============================================================================

const (
	KeywordBackendMemory = "memory"
	KeywordBackendSQLite = "sqlite"
)

type KeywordConfig struct {
	Backend string `yaml:"backend,omitempty"`

	// Path is the sqlite database path (":memory:" is accepted).
	Path string `yaml:"path,omitempty"`

	// K1 and B are the BM25 term-saturation and length-normalization
	// parameters.
	K1 float64 `yaml:"k1,omitempty"`
	B  float64 `yaml:"b,omitempty"`
}

func (c *KeywordConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = KeywordBackendMemory
	}
	if c.Backend == KeywordBackendSQLite && c.Path == "" {
		c.Path = "scout-keyword.db"
	}
	if c.K1 == 0 {
		c.K1 = 1.2
	}
	if c.B == 0 {
		c.B = 0.75
	}
}

func (c *KeywordConfig) Validate() error {
	switch c.Backend {
	case KeywordBackendMemory, KeywordBackendSQLite:
	default:
		return fmt.Errorf("invalid keyword backend: %s", c.Backend)
	}
	if c.B < 0 || c.B > 1 {
		return fmt.Errorf("bm25 b must be in [0,1], got %v", c.B)
	}
	return nil
}

// ============================================================================
// RETRIEVER
// ============================================================================

type RerankConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	Model         string `yaml:"model,omitempty"`
	MaxCandidates int    `yaml:"max_candidates,omitempty"`
}

type RetrieverConfig struct {
	TopK                int          `yaml:"top_k,omitempty"`
	VectorWeight        float64      `yaml:"vector_weight,omitempty"`
	KeywordWeight       float64      `yaml:"keyword_weight,omitempty"`
	CandidateMultiplier int          `yaml:"candidate_multiplier,omitempty"`
	AdjacencyWindow     int          `yaml:"adjacency_window,omitempty"`
	ScoreEpsilon        float64      `yaml:"score_epsilon,omitempty"`
	Rerank              RerankConfig `yaml:"rerank,omitempty"`
}

func (c *RetrieverConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 10
	}
	// Equal weighting unless configured otherwise.
	if c.VectorWeight == 0 && c.KeywordWeight == 0 {
		c.VectorWeight = 0.5
		c.KeywordWeight = 0.5
	}
	if c.CandidateMultiplier == 0 {
		c.CandidateMultiplier = 3
	}
	if c.AdjacencyWindow == 0 {
		c.AdjacencyWindow = 1
	}
	if c.ScoreEpsilon == 0 {
		c.ScoreEpsilon = 1e-9
	}
	if c.Rerank.MaxCandidates == 0 {
		c.Rerank.MaxCandidates = 20
	}
}

func (c *RetrieverConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if c.VectorWeight+c.KeywordWeight == 0 {
		return fmt.Errorf("at least one retrieval weight must be positive")
	}
	return nil
}

// ============================================================================
// REASONING
// ============================================================================

const (
	PromptStandard = "standard"
	PromptResearch = "research"
	PromptSimple   = "simple"
)

type CritiqueConfig struct {
	Enabled           bool    `yaml:"enabled,omitempty"`
	CoverageThreshold float64 `yaml:"coverage_threshold,omitempty"`
	MaxRevisions      int     `yaml:"max_revisions,omitempty"`
}

type ReasoningConfig struct {
	MaxSteps        int            `yaml:"max_steps,omitempty"`
	Budget          Duration       `yaml:"budget,omitempty"`
	Prompt          string         `yaml:"prompt,omitempty"`
	BackendAttempts int            `yaml:"backend_attempts,omitempty"`
	Critique        CritiqueConfig `yaml:"critique,omitempty"`
}

func (c *ReasoningConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 10
	}
	if c.Budget == 0 {
		c.Budget = Duration(5 * time.Minute)
	}
	if c.Prompt == "" {
		c.Prompt = PromptStandard
	}
	if c.BackendAttempts == 0 {
		c.BackendAttempts = 3
	}
	if c.Critique.CoverageThreshold == 0 {
		c.Critique.CoverageThreshold = 0.5
	}
	if c.Critique.MaxRevisions == 0 {
		c.Critique.MaxRevisions = 1
	}
}

func (c *ReasoningConfig) Validate() error {
	if c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	switch c.Prompt {
	case PromptStandard, PromptResearch, PromptSimple:
	default:
		return fmt.Errorf("invalid prompt variant: %s", c.Prompt)
	}
	if c.Critique.CoverageThreshold < 0 || c.Critique.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold must be in [0,1], got %v", c.Critique.CoverageThreshold)
	}
	return nil
}

// ============================================================================
// MEMORY
// ============================================================================

const (
	MemoryStrategyBuffer  = "buffer"
	MemoryStrategySummary = "summary"
)

type RedisConfig struct {
	Enabled  bool     `yaml:"enabled,omitempty"`
	Addr     string   `yaml:"addr,omitempty"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	TTL      Duration `yaml:"ttl,omitempty"`
}

type MemoryConfig struct {
	Strategy            string      `yaml:"strategy,omitempty"`
	Window              int         `yaml:"window,omitempty"`
	TokenBudget         int         `yaml:"token_budget,omitempty"`
	SummaryTriggerRatio float64     `yaml:"summary_trigger_ratio,omitempty"`
	SummaryTargetRatio  float64     `yaml:"summary_target_ratio,omitempty"`
	RecentKeep          int         `yaml:"recent_keep,omitempty"`
	Redis               RedisConfig `yaml:"redis,omitempty"`
}

func (c *MemoryConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = MemoryStrategySummary
	}
	if c.Window == 0 {
		c.Window = 20
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 2000
	}
	if c.SummaryTriggerRatio == 0 {
		c.SummaryTriggerRatio = 0.8
	}
	if c.SummaryTargetRatio == 0 {
		c.SummaryTargetRatio = 0.6
	}
	if c.RecentKeep == 0 {
		c.RecentKeep = 6
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = Duration(24 * time.Hour)
	}
}

func (c *MemoryConfig) Validate() error {
	switch c.Strategy {
	case MemoryStrategyBuffer, MemoryStrategySummary:
	default:
		return fmt.Errorf("invalid memory strategy: %s", c.Strategy)
	}
	if c.SummaryTriggerRatio <= c.SummaryTargetRatio {
		return fmt.Errorf("summary_trigger_ratio (%v) must exceed summary_target_ratio (%v)",
			c.SummaryTriggerRatio, c.SummaryTargetRatio)
	}
	return nil
}

// ============================================================================
// SESSION STORE
// ============================================================================

const (
	SessionStoreMemory = "memory"
	SessionStoreSQL    = "sql"
)

type SessionSQLConfig struct {
	Driver   string `yaml:"driver,omitempty"` // sqlite, postgres, mysql
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`

	// Path is the sqlite file path.
	Path string `yaml:"path,omitempty"`

	MaxConns int `yaml:"max_conns,omitempty"`
	MaxIdle  int `yaml:"max_idle,omitempty"`
}

func (c *SessionSQLConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	switch c.Driver {
	case "sqlite":
		if c.Path == "" {
			c.Path = "scout-sessions.db"
		}
	case "postgres":
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 5432
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case "mysql":
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 3306
		}
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
}

func (c *SessionSQLConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported sql driver: %s (supported: sqlite, postgres, mysql)", c.Driver)
	}
	if c.Driver != "sqlite" && c.Database == "" {
		return fmt.Errorf("database name is required for %s", c.Driver)
	}
	return nil
}

// ConnectionString builds the driver-specific DSN.
func (c *SessionSQLConfig) ConnectionString() string {
	switch c.Driver {
	case "sqlite":
		return c.Path
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.Username, c.Password, c.Host, c.Port, c.Database)
	}
	return ""
}

type SessionConfig struct {
	Store string           `yaml:"store,omitempty"`
	SQL   SessionSQLConfig `yaml:"sql,omitempty"`
}

func (c *SessionConfig) SetDefaults() {
	if c.Store == "" {
		c.Store = SessionStoreMemory
	}
	c.SQL.SetDefaults()
}

func (c *SessionConfig) Validate() error {
	switch c.Store {
	case SessionStoreMemory, SessionStoreSQL:
	default:
		return fmt.Errorf("invalid session store: %s", c.Store)
	}
	if c.Store == SessionStoreSQL {
		return c.SQL.Validate()
	}
	return nil
}

// ============================================================================
// TOOLS
// ============================================================================

type ToolRetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
}

type SandboxConfig struct {
	AllowedCommands  []string `yaml:"allowed_commands,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	MaxOutputBytes   int      `yaml:"max_output_bytes,omitempty"`
}

type WebSearchConfig struct {
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty"`
}

type MCPServerConfig struct {
	Name      string   `yaml:"name"`
	Transport string   `yaml:"transport,omitempty"` // stdio or http
	Command   string   `yaml:"command,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	URL       string   `yaml:"url,omitempty"`
}

type ToolsConfig struct {
	// Enabled lists builtin tools to register. Empty means all builtins.
	Enabled []string `yaml:"enabled,omitempty"`

	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retry     ToolRetryConfig   `yaml:"retry,omitempty"`
	Sandbox   SandboxConfig     `yaml:"sandbox,omitempty"`
	WebSearch WebSearchConfig   `yaml:"web_search,omitempty"`
	MCP       []MCPServerConfig `yaml:"mcp,omitempty"`
}

func (c *ToolsConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(500 * time.Millisecond)
	}
	if len(c.Sandbox.AllowedCommands) == 0 {
		c.Sandbox.AllowedCommands = []string{"ls", "cat", "grep", "wc", "head", "tail", "find", "echo"}
	}
	if c.Sandbox.MaxOutputBytes == 0 {
		c.Sandbox.MaxOutputBytes = 64 * 1024
	}
	if c.WebSearch.MaxResults == 0 {
		c.WebSearch.MaxResults = 5
	}
}

func (c *ToolsConfig) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	for i, srv := range c.MCP {
		if srv.Name == "" {
			return fmt.Errorf("mcp server %d: name is required", i)
		}
		switch srv.Transport {
		case "", "stdio":
			if srv.Command == "" {
				return fmt.Errorf("mcp server '%s': stdio transport requires command", srv.Name)
			}
		case "http":
			if srv.URL == "" {
				return fmt.Errorf("mcp server '%s': http transport requires url", srv.Name)
			}
		default:
			return fmt.Errorf("mcp server '%s': invalid transport %s", srv.Name, srv.Transport)
		}
	}
	return nil
}

// ============================================================================
// INGEST
// ============================================================================

type IngestConfig struct {
	ChunkTokens  int      `yaml:"chunk_tokens,omitempty"`
	ChunkOverlap int      `yaml:"chunk_overlap,omitempty"`
	Encoding     string   `yaml:"encoding,omitempty"`
	Watch        bool     `yaml:"watch,omitempty"`
	Paths        []string `yaml:"paths,omitempty"`
}

func (c *IngestConfig) SetDefaults() {
	if c.ChunkTokens == 0 {
		c.ChunkTokens = 512
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 64
	}
	if c.Encoding == "" {
		c.Encoding = "cl100k_base"
	}
}

func (c *IngestConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkTokens {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_tokens (%d)",
			c.ChunkOverlap, c.ChunkTokens)
	}
	return nil
}

// ============================================================================
// TRACE
// ============================================================================

type TraceConfig struct {
	// Dir is where execution trace files are written.
	Dir string `yaml:"dir,omitempty"`

	// File enables the JSONL file sink.
	File *bool `yaml:"file,omitempty"`

	// Slog mirrors trace events to the process logger at debug level.
	Slog bool `yaml:"slog,omitempty"`
}

func (c *TraceConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.File == nil {
		c.File = BoolPtr(true)
	}
}

func (c *TraceConfig) Validate() error {
	return nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/smarthr/internal/embed"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/ingest"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// Config file names, in lookup order.
const (
	ProjectConfigFile    = ".smarthr.yaml"
	ProjectConfigFileAlt = ".smarthr.yml"
)

// Config represents the complete smarthr configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Answer     AnswerConfig     `yaml:"answer" json:"answer"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates the policy data.
type PathsConfig struct {
	// DataDir holds raw_policies/, processed/ and index/.
	// Relative paths resolve against the project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures hybrid retrieval.
// Weights are configurable via:
//  1. User config (~/.config/smarthr/config.yaml)
//  2. Project config (.smarthr.yaml)
//  3. Env vars (SMARTHR_DENSE_WEIGHT, SMARTHR_LEXICAL_WEIGHT) - highest priority
type SearchConfig struct {
	// TopK is the number of passages returned per query.
	TopK int `yaml:"top_k" json:"top_k"`

	// DenseEnabled turns the embedding signal on. USE_DENSE=0 disables it.
	DenseEnabled bool `yaml:"dense_enabled" json:"dense_enabled"`

	// DenseWeight and LexicalWeight must sum to 1.0.
	DenseWeight   float64 `yaml:"dense_weight" json:"dense_weight"`
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// LexicalBackend is "okapi" (default) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// VectorBackend is "flat" (default) or "hnsw".
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
}

// EmbeddingsConfig configures the embedding provider chain.
type EmbeddingsConfig struct {
	// Provider is "openai", "local" or "static". "st" is accepted for local.
	Provider string `yaml:"provider" json:"provider"`

	Model         string `yaml:"model" json:"model"`             // hosted model
	LocalModel    string `yaml:"local_model" json:"local_model"` // fallback model served by Ollama
	OllamaHost    string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`

	// APIKey is normally taken from OPENAI_API_KEY and never written back.
	APIKey string `yaml:"api_key,omitempty" json:"-"`

	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	CacheSize         int           `yaml:"cache_size" json:"cache_size"`
}

// IngestConfig configures markdown ingestion.
type IngestConfig struct {
	ChunkSize     int    `yaml:"chunk_size" json:"chunk_size"`
	MinChunkLen   int    `yaml:"min_chunk_len" json:"min_chunk_len"`
	Region        string `yaml:"region" json:"region"`
	EffectiveFrom string `yaml:"effective_from" json:"effective_from"`
}

// AnswerConfig configures answer composition.
type AnswerConfig struct {
	// Style is "bullets", "paragraph" or "llm".
	Style    string `yaml:"style" json:"style"`
	GenModel string `yaml:"gen_model" json:"gen_model"`

	// UseLLM makes "llm" the default style.
	UseLLM bool `yaml:"use_llm" json:"use_llm"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	weights := search.DefaultWeights()
	engine := search.DefaultConfig()
	ing := ingest.DefaultConfig()

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: "data",
		},
		Search: SearchConfig{
			TopK:           engine.TopK,
			DenseEnabled:   true,
			DenseWeight:    weights.Dense,
			LexicalWeight:  weights.Lexical,
			LexicalBackend: string(store.LexicalBackendOkapi),
			VectorBackend:  string(store.VectorBackendFlat),
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "local",
			Model:      embed.DefaultOpenAIModel,
			LocalModel: embed.DefaultLocalModel,
			OllamaHost: "", // Empty uses http://localhost:11434
			Timeout:    embed.DefaultTimeout,
			BatchSize:  embed.DefaultBatchSize,
			CacheSize:  embed.DefaultEmbeddingCacheSize,
		},
		Ingest: IngestConfig{
			ChunkSize:     ing.ChunkSize,
			MinChunkLen:   ing.MinChunkLen,
			Region:        ing.Region,
			EffectiveFrom: ing.EffectiveFrom,
		},
		Answer: AnswerConfig{
			Style:    "bullets",
			GenModel: "gpt-4o-mini",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/smarthr/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/smarthr/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "smarthr", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "smarthr", "config.yaml")
	}
	return filepath.Join(home, ".config", "smarthr", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/smarthr/config.yaml)
//  3. Project config (.smarthr.yaml in the project root)
//  4. Environment variables (SMARTHR_* and the legacy names)
//
// A relative data_dir is resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, hrerrors.ConfigError(fmt.Sprintf("invalid configuration: %v", err), err)
	}

	if !filepath.IsAbs(cfg.Paths.DataDir) {
		cfg.Paths.DataDir = filepath.Join(dir, cfg.Paths.DataDir)
	}
	return cfg, nil
}

// LoadFile decodes a single config file over the defaults, without user
// config or environment overrides. `config init --force` uses it to
// upgrade a file in place: existing values are kept, options added since
// the file was written take their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads .smarthr.yaml, or .smarthr.yml when the former is absent.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes a YAML file over c. Keys absent from the file keep their
// current value, so an explicit `dense_enabled: false` is honored. Unknown
// keys are rejected to surface typos.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return hrerrors.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}
	return nil
}

// applyEnvOverrides applies SMARTHR_* and legacy environment overrides.
// SMARTHR_* wins when both spellings are set.
func (c *Config) applyEnvOverrides() {
	if v := env("SMARTHR_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}

	if v := env("SMARTHR_TOP_K", "TOP_K"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
	if v := env("SMARTHR_USE_DENSE", "USE_DENSE"); v != "" {
		c.Search.DenseEnabled = strings.TrimSpace(v) == "1" || strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v := env("SMARTHR_DENSE_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.DenseWeight = w
		}
	}
	if v := env("SMARTHR_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := env("SMARTHR_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}
	if v := env("SMARTHR_VECTOR_BACKEND"); v != "" {
		c.Search.VectorBackend = v
	}

	if v := env("SMARTHR_EMBEDDINGS_PROVIDER", "EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := env("SMARTHR_EMBEDDINGS_MODEL", "EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := env("SMARTHR_LOCAL_MODEL", "ST_MODEL"); v != "" {
		c.Embeddings.LocalModel = v
	}
	if v := env("SMARTHR_OLLAMA_HOST", "OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := env("SMARTHR_OPENAI_BASE_URL", "OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}
	if v := env("OPENAI_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := env("SMARTHR_EMBEDDINGS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Embeddings.Timeout = d
		}
	}

	if v := env("SMARTHR_GEN_MODEL", "GEN_MODEL"); v != "" {
		c.Answer.GenModel = v
	}
	if v := env("SMARTHR_USE_LLM", "USE_LLM"); v != "" {
		c.Answer.UseLLM = strings.EqualFold(strings.TrimSpace(v), "true") || strings.TrimSpace(v) == "1"
	}
	if v := env("SMARTHR_ANSWER_STYLE"); v != "" {
		c.Answer.Style = v
	}

	if v := env("SMARTHR_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := env("SMARTHR_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// env returns the first non-empty variable among keys.
func env(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FindProjectRoot walks up from startDir looking for .smarthr.yaml/.yml or
// a .git directory. With no marker it returns the absolute startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ProjectConfigFile)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigFileAlt)) ||
			dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// RawDir is where the markdown policies live.
func (c *Config) RawDir() string {
	return filepath.Join(c.Paths.DataDir, "raw_policies")
}

// CorpusPath is the processed corpus written by ingest.
func (c *Config) CorpusPath() string {
	return filepath.Join(c.Paths.DataDir, "processed", ingest.CorpusFile)
}

// IndexDir holds vectors.npy and meta.jsonl.
func (c *Config) IndexDir() string {
	return filepath.Join(c.Paths.DataDir, "index")
}

// EngineConfig converts the search section for the retrieval engine.
func (c *Config) EngineConfig() search.EngineConfig {
	ec := search.DefaultConfig()
	ec.TopK = c.Search.TopK
	ec.DenseEnabled = c.Search.DenseEnabled
	ec.Weights = search.Weights{Dense: c.Search.DenseWeight, Lexical: c.Search.LexicalWeight}
	return ec
}

// EmbedOptions converts the embeddings section for the provider chain.
func (c *Config) EmbedOptions() embed.Options {
	return embed.Options{
		Provider:      c.Embeddings.Provider,
		Model:         c.Embeddings.Model,
		LocalModel:    c.Embeddings.LocalModel,
		OllamaHost:    c.Embeddings.OllamaHost,
		OpenAIBaseURL: c.Embeddings.OpenAIBaseURL,
		APIKey:        c.Embeddings.APIKey,
		Timeout:       c.Embeddings.Timeout,
		BatchSize:     c.Embeddings.BatchSize,
		CacheSize:     c.Embeddings.CacheSize,
	}
}

// IngestOptions converts the ingest section.
func (c *Config) IngestOptions() ingest.Config {
	return ingest.Config{
		ChunkSize:     c.Ingest.ChunkSize,
		MinChunkLen:   c.Ingest.MinChunkLen,
		Region:        c.Ingest.Region,
		EffectiveFrom: c.Ingest.EffectiveFrom,
	}
}

// AnswerStyle is the default style for `ask`: "llm" when use_llm is set,
// otherwise answer.style.
func (c *Config) AnswerStyle() string {
	if c.Answer.UseLLM {
		return "llm"
	}
	return c.Answer.Style
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.DenseWeight < 0 || c.Search.DenseWeight > 1 {
		return fmt.Errorf("dense_weight must be between 0 and 1, got %f", c.Search.DenseWeight)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if sum := c.Search.DenseWeight + c.Search.LexicalWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("dense_weight + lexical_weight must equal 1.0, got %.2f", sum)
	}
	if _, err := store.ParseLexicalBackend(c.Search.LexicalBackend); err != nil {
		return fmt.Errorf("search.lexical_backend: %w", err)
	}
	if _, err := store.ParseVectorBackend(c.Search.VectorBackend); err != nil {
		return fmt.Errorf("search.vector_backend: %w", err)
	}

	if _, err := embed.ParseProvider(c.Embeddings.Provider); err != nil {
		return fmt.Errorf("embeddings.provider: %w", err)
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.BatchSize > embed.MaxBatchSize {
		return fmt.Errorf("embeddings.batch_size must be between 0 and %d, got %d", embed.MaxBatchSize, c.Embeddings.BatchSize)
	}
	if c.Embeddings.Timeout < 0 {
		return fmt.Errorf("embeddings.timeout must be non-negative, got %s", c.Embeddings.Timeout)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		return fmt.Errorf("embeddings.requests_per_second must be non-negative, got %f", c.Embeddings.RequestsPerSecond)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.MinChunkLen < 0 {
		return fmt.Errorf("ingest.min_chunk_len must be non-negative, got %d", c.Ingest.MinChunkLen)
	}
	if c.Ingest.EffectiveFrom != "" {
		if _, err := time.Parse(time.DateOnly, c.Ingest.EffectiveFrom); err != nil {
			return fmt.Errorf("ingest.effective_from must be YYYY-MM-DD, got %s", c.Ingest.EffectiveFrom)
		}
	}

	validStyles := map[string]bool{"bullets": true, "paragraph": true, "llm": true}
	if !validStyles[strings.ToLower(c.Answer.Style)] {
		return fmt.Errorf("answer.style must be 'bullets', 'paragraph' or 'llm', got %s", c.Answer.Style)
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file. The API key is omitted.
func (c *Config) WriteYAML(path string) error {
	out := *c
	out.Embeddings.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	err = store.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

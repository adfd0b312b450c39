// Package config provides the configuration schema, loader, and provider
// registry of a dialogic deployment, plus a watcher that reloads bot
// definitions while the server runs.
package config

import (
	"time"

	"github.com/MrWong99/dialogic/internal/adapter/alice"
	"github.com/MrWong99/dialogic/internal/adapter/discord"
	"github.com/MrWong99/dialogic/internal/adapter/telegram"
	"github.com/MrWong99/dialogic/internal/msglog"
	"github.com/MrWong99/dialogic/internal/storage"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// ManagerType selects the implementation of one cascade member.
type ManagerType string

const (
	// ManagerGreetAndHelp answers greetings, help and exit requests.
	ManagerGreetAndHelp ManagerType = "greet_and_help"

	// ManagerFAQ answers questions from a question/answer file.
	ManagerFAQ ManagerType = "faq"

	// ManagerTurn runs a declarative turn-based bot.
	ManagerTurn ManagerType = "turn"
)

// IsValid reports whether t is a recognised manager type.
func (t ManagerType) IsValid() bool {
	switch t {
	case ManagerGreetAndHelp, ManagerFAQ, ManagerTurn:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Log        LogConfig       `yaml:"log"`
	Storage    storage.Config  `yaml:"storage"`
	MessageLog msglog.Config   `yaml:"message_log"`
	NLU        NLUConfig       `yaml:"nlu"`
	Providers  ProvidersConfig `yaml:"providers"`
	Managers   ManagersConfig  `yaml:"managers"`
	Adapters   AdaptersConfig  `yaml:"adapters"`
}

// ServerConfig holds the HTTP listener serving webhooks, websocket chat,
// MCP, health checks and metrics.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LogConfig selects the log level, format and optional log file.
type LogConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`

	// File, when set, receives the log in addition to stderr and is
	// rotated by size.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NLUConfig holds settings shared by every intent resolver.
type NLUConfig struct {
	// Engine is the regular expression engine: "std" or "regexp2".
	// Default: std.
	Engine string `yaml:"engine"`

	// ExpressionsFile names a YAML file of named regex fragments available
	// to every turn-based bot.
	ExpressionsFile string `yaml:"expressions_file"`

	// LemmasFile names a lemma dictionary (YAML map or word<TAB>lemma
	// lines). When set, intent and FAQ matchers compare lemmatized text.
	LemmasFile string `yaml:"lemmas_file"`

	// Heuristics adds the built-in yes, no, help and exit intents to every
	// turn-based bot.
	Heuristics bool `yaml:"heuristics"`
}

// ProvidersConfig declares the remote models used by model-based matchers.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	Embeddings          ProviderEntry   `yaml:"embeddings"`
	EmbeddingsFallbacks []ProviderEntry `yaml:"embeddings_fallbacks"`

	Vectors VectorsConfig `yaml:"vectors"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// VectorsConfig selects the word vector table of w2v and wmd matchers.
// Vectors are read from File or PostgresDSN when set; words missing there
// are embedded on demand through providers.embeddings.
type VectorsConfig struct {
	File        string `yaml:"file"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Table       string `yaml:"table"`
	Dimensions  int    `yaml:"dimensions"`
}

// ManagersConfig declares the cascade of dialog managers. The first
// manager that answers wins; when all decline, DefaultMessage is sent.
type ManagersConfig struct {
	DefaultMessage string          `yaml:"default_message"`
	Cascade        []ManagerConfig `yaml:"cascade"`
}

// ManagerConfig describes one cascade member.
type ManagerConfig struct {
	Name string      `yaml:"name"`
	Type ManagerType `yaml:"type"`

	// Greeting, Help and Exit are the messages of greet_and_help.
	Greeting string `yaml:"greeting"`
	Help     string `yaml:"help"`
	Exit     string `yaml:"exit"`

	// File is the definition of faq and turn managers. Relative paths are
	// resolved against the directory of the configuration file.
	File string `yaml:"file"`

	// Matcher overrides the matcher name of faq managers.
	Matcher   string   `yaml:"matcher"`
	Threshold *float64 `yaml:"threshold"`

	// Seed makes phrase sampling deterministic.
	Seed *int64 `yaml:"seed"`
}

// AdaptersConfig enables the platform adapters.
type AdaptersConfig struct {
	Alice     *AliceConfig     `yaml:"alice"`
	Telegram  *telegram.Config `yaml:"telegram"`
	Discord   *discord.Config  `yaml:"discord"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	MCP       *MCPConfig       `yaml:"mcp"`
}

// AliceConfig mounts the Alice webhook.
type AliceConfig struct {
	// Path is the webhook route. Default: /alice/.
	Path string `yaml:"path"`

	NativeState alice.NativeState `yaml:"native_state"`
}

// WebSocketConfig mounts the WebSocket chat endpoint.
type WebSocketConfig struct {
	// Path is the endpoint route. Default: /ws.
	Path           string   `yaml:"path"`
	OriginPatterns []string `yaml:"origin_patterns"`
}

// MCPTransport selects how the MCP server is reached.
type MCPTransport string

const (
	MCPTransportStdio MCPTransport = "stdio"
	MCPTransportHTTP  MCPTransport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t MCPTransport) IsValid() bool {
	return t == MCPTransportStdio || t == MCPTransportHTTP
}

// MCPConfig exposes the dialog as an MCP tool server.
type MCPConfig struct {
	// Transport defaults to streamable-http.
	Transport MCPTransport `yaml:"transport"`

	// Path is the HTTP route of the streamable-http transport. Default: /mcp.
	Path string `yaml:"path"`
}

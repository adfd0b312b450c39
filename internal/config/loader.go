package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dialogic/internal/adapter/alice"
	"github.com/MrWong99/dialogic/pkg/matcher"
	"github.com/MrWong99/dialogic/pkg/provider/llm/anyllm"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        anyllm.Providers,
	"embeddings": {"openai", "ollama"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultAlicePath       = "/alice/"
	DefaultWebSocketPath   = "/ws"
	DefaultMCPPath         = "/mcp"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Environment variables referenced as ${VAR} are expanded, and
// relative definition files are resolved against the directory of path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Relative paths are left as they are.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogInfo
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = LogFormatJSON
	}
	if cfg.Log.File != "" && cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if a := cfg.Adapters.Alice; a != nil && a.Path == "" {
		a.Path = DefaultAlicePath
	}
	if ws := cfg.Adapters.WebSocket; ws != nil && ws.Path == "" {
		ws.Path = DefaultWebSocketPath
	}
	if m := cfg.Adapters.MCP; m != nil {
		if m.Transport == "" {
			m.Transport = MCPTransportHTTP
		}
		if m.Path == "" {
			m.Path = DefaultMCPPath
		}
	}
}

// resolvePaths makes relative definition files relative to dir.
func (c *Config) resolvePaths(dir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	resolve(&c.NLU.ExpressionsFile)
	resolve(&c.NLU.LemmasFile)
	resolve(&c.Providers.Vectors.File)
	for i := range c.Managers.Cascade {
		resolve(&c.Managers.Cascade[i].File)
	}
}

// DefinitionFiles returns the bot definition files cfg refers to: the
// files of faq and turn managers, the shared expressions file and the
// lemma dictionary.
func (c *Config) DefinitionFiles() []string {
	var files []string
	for _, f := range []string{c.NLU.ExpressionsFile, c.NLU.LemmasFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	for _, m := range c.Managers.Cascade {
		if m.File != "" && !slices.Contains(files, m.File) {
			files = append(files, m.File)
		}
	}
	return files
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && cfg.Log.Format != LogFormatJSON && cfg.Log.Format != LogFormatText {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: json, text", cfg.Log.Format))
	}

	// Storage and message log
	if err := cfg.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.MessageLog.Validate(); err != nil {
		errs = append(errs, err)
	}

	// NLU
	if _, err := matcher.EngineByName(cfg.NLU.Engine); err != nil {
		errs = append(errs, fmt.Errorf("nlu.engine: %w", err))
	}

	// Providers
	errs = append(errs, validateProviders(&cfg.Providers)...)

	// Managers
	errs = append(errs, validateManagers(cfg)...)

	// Adapters
	errs = append(errs, validateAdapters(&cfg.Adapters)...)

	return errors.Join(errs...)
}

func validateProviders(p *ProvidersConfig) []error {
	var errs []error
	validateProviderName("llm", p.LLM.Name)
	validateProviderName("embeddings", p.Embeddings.Name)
	for i, fb := range p.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}
	for i, fb := range p.EmbeddingsFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.embeddings_fallbacks[%d].name is required", i))
		}
		validateProviderName("embeddings", fb.Name)
	}
	if len(p.LLMFallbacks) > 0 && p.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks require providers.llm"))
	}
	if len(p.EmbeddingsFallbacks) > 0 && p.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings_fallbacks require providers.embeddings"))
	}
	if p.Vectors.PostgresDSN != "" && p.Vectors.Dimensions <= 0 {
		errs = append(errs, errors.New("providers.vectors.dimensions is required with postgres_dsn"))
	}
	return errs
}

func validateManagers(cfg *Config) []error {
	var errs []error
	if len(cfg.Managers.Cascade) == 0 {
		errs = append(errs, errors.New("managers.cascade needs at least one manager"))
	}

	known := matcher.Names()
	seen := make(map[string]int, len(cfg.Managers.Cascade))
	for i, m := range cfg.Managers.Cascade {
		prefix := fmt.Sprintf("managers.cascade[%d]", i)
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[m.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of managers.cascade[%d]", prefix, m.Name, prev))
			}
			seen[m.Name] = i
		}
		if !m.Type.IsValid() {
			errs = append(errs, fmt.Errorf("%s.type %q is invalid; valid values: greet_and_help, faq, turn", prefix, m.Type))
			continue
		}
		if m.Type != ManagerGreetAndHelp && m.File == "" {
			errs = append(errs, fmt.Errorf("%s.file is required for %s managers", prefix, m.Type))
		}
		if m.Matcher == "" {
			continue
		}
		if m.Type != ManagerFAQ {
			errs = append(errs, fmt.Errorf("%s.matcher is only supported by faq managers; turn bots set it in their file", prefix))
			continue
		}
		if !slices.Contains(known, m.Matcher) {
			errs = append(errs, fmt.Errorf("%s.matcher %q is unknown; valid values: %v", prefix, m.Matcher, known))
		}
		if err := requireProviders(cfg, m.Matcher); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
	}
	return errs
}

// requireProviders reports a missing provider for model-based matchers.
func requireProviders(cfg *Config, matcherName string) error {
	switch matcherName {
	case "model":
		if cfg.Providers.LLM.Name == "" {
			return fmt.Errorf("matcher %q requires providers.llm", matcherName)
		}
	case "w2v", "wmd":
		v := cfg.Providers.Vectors
		if cfg.Providers.Embeddings.Name == "" && v.File == "" && v.PostgresDSN == "" {
			return fmt.Errorf("matcher %q requires providers.embeddings or providers.vectors", matcherName)
		}
	}
	return nil
}

func validateAdapters(a *AdaptersConfig) []error {
	var errs []error
	if a.Alice != nil {
		if _, err := alice.ParseNativeState(string(a.Alice.NativeState)); err != nil {
			errs = append(errs, fmt.Errorf("adapters.alice.native_state: %w", err))
		}
	}
	if a.Telegram != nil && a.Telegram.Token == "" {
		errs = append(errs, errors.New("adapters.telegram.token is required"))
	}
	if a.Discord != nil && a.Discord.Token == "" {
		errs = append(errs, errors.New("adapters.discord.token is required"))
	}
	if a.MCP != nil && a.MCP.Transport != "" && !a.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("adapters.mcp.transport %q is invalid; valid values: stdio, streamable-http", a.MCP.Transport))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

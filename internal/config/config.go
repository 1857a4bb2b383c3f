package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/gtalwar12/second-brain-poc/internal/core/canon"
)

// Duration decodes TOML strings such as "20s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Port string `toml:"port" validate:"required,numeric"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

type UserConfig struct {
	ID           string `toml:"id" validate:"required"`
	Timezone     string `toml:"timezone" validate:"required"`
	MaxTextRunes int    `toml:"max_text_runes" validate:"gte=0"`
}

type LLMConfig struct {
	Provider  string `toml:"provider" validate:"oneof=ollama openai claude gemini"`
	Model     string `toml:"model" validate:"required"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens" validate:"gte=0"`
}

type InferenceConfig struct {
	Timeout         Duration `toml:"timeout"`
	Attempts        int      `toml:"attempts" validate:"gte=1,lte=10"`
	BaseDelay       Duration `toml:"base_delay"`
	MaxDelay        Duration `toml:"max_delay"`
	BreakerFailures uint32   `toml:"breaker_failures" validate:"gte=1"`
	BreakerCooldown Duration `toml:"breaker_cooldown"`
	// SystemPrompt replaces the built-in prompt when set.
	SystemPrompt string   `toml:"system_prompt"`
	ContextTypes []string `toml:"context_types"`
	ContextLimit int      `toml:"context_limit" validate:"gte=0"`
}

type StoreConfig struct {
	Backend    string `toml:"backend" validate:"oneof=memory sqlite memgraph"`
	SQLitePath string `toml:"sqlite_path" validate:"required_if=Backend sqlite"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type AuditConfig struct {
	Backend string `toml:"backend" validate:"oneof=jsonl badger memory"`
	Path    string `toml:"path" validate:"required_unless=Backend memory"`
}

type ChecklistConfig struct {
	Container string `toml:"container" validate:"required"`
	Title     string `toml:"title" validate:"required"`
}

type ActionsConfig struct {
	Attempts  int      `toml:"attempts" validate:"gte=1,lte=10"`
	BaseDelay Duration `toml:"base_delay"`
}

type PollerConfig struct {
	Interval    Duration `toml:"interval"`
	MaxAttempts int      `toml:"max_attempts" validate:"gte=1"`
	// RecipeHints are substrings that mark a note as worth processing.
	RecipeHints []string `toml:"recipe_hints"`
}

type SourcesConfig struct {
	Kind          string   `toml:"kind" validate:"oneof=applescript filesystem none"`
	InboxDir      string   `toml:"inbox_dir" validate:"required_if=Kind filesystem"`
	RemindersList string   `toml:"reminders_list"`
	NotesFolder   string   `toml:"notes_folder"`
	ScriptTimeout Duration `toml:"script_timeout"`
}

type FetchConfig struct {
	Timeout  Duration `toml:"timeout"`
	MaxBytes int64    `toml:"max_bytes" validate:"gt=0"`
}

// CanonConfig extends the built-in canonicalization rules.
type CanonConfig struct {
	// QuantityPatterns are regular expressions matched against whole tokens.
	QuantityPatterns []string          `toml:"quantity_patterns"`
	Units            []string          `toml:"units"`
	Fillers          []string          `toml:"fillers"`
	Descriptors      []string          `toml:"descriptors"`
	Irregular        map[string]string `toml:"irregular"`
	Invariant        []string          `toml:"invariant"`
}

// Rules returns the built-in canonicalization rules extended with c.
func (c CanonConfig) Rules() canon.Rules {
	return canon.DefaultRules().Extend(canon.Rules{
		QuantityPatterns: c.QuantityPatterns,
		Units:            c.Units,
		Fillers:          c.Fillers,
		Descriptors:      c.Descriptors,
		Irregular:        c.Irregular,
		Invariant:        c.Invariant,
	})
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	User      UserConfig      `toml:"user"`
	LLM       LLMConfig       `toml:"llm"`
	Inference InferenceConfig `toml:"inference"`
	Store     StoreConfig     `toml:"store"`
	Memgraph  MemgraphConfig  `toml:"memgraph"`
	Audit     AuditConfig     `toml:"audit"`
	Checklist ChecklistConfig `toml:"checklist"`
	Actions   ActionsConfig   `toml:"actions"`
	Poller    PollerConfig    `toml:"poller"`
	Sources   SourcesConfig   `toml:"sources"`
	Fetch     FetchConfig     `toml:"fetch"`
	Canon     CanonConfig     `toml:"canon"`
	// Categories maps extra item keys to category names.
	Categories map[string]string `toml:"categories"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8898"},
		Log:    LogConfig{Level: "info", Format: "console"},
		User:   UserConfig{ID: "local-user", Timezone: "America/Los_Angeles", MaxTextRunes: 20000},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5:7b-instruct",
			BaseURL:  "http://localhost:11434",
		},
		Inference: InferenceConfig{
			Timeout:         Duration{120 * time.Second},
			Attempts:        3,
			BaseDelay:       Duration{time.Second},
			MaxDelay:        Duration{10 * time.Second},
			BreakerFailures: 5,
			BreakerCooldown: Duration{time.Minute},
			ContextTypes:    []string{"item", "recipe"},
			ContextLimit:    50,
		},
		Store:     StoreConfig{Backend: "sqlite", SQLitePath: "data/brain.db"},
		Memgraph:  MemgraphConfig{URI: "bolt://localhost:7687"},
		Audit:     AuditConfig{Backend: "jsonl", Path: "data/interactions.jsonl"},
		Checklist: ChecklistConfig{Container: "To Buy", Title: "Groceries"},
		Actions:   ActionsConfig{Attempts: 3, BaseDelay: Duration{500 * time.Millisecond}},
		Poller: PollerConfig{
			Interval:    Duration{20 * time.Second},
			MaxAttempts: 5,
			RecipeHints: []string{"ingredient", "•", "-", "*"},
		},
		Sources: SourcesConfig{Kind: "applescript", InboxDir: "inbox", ScriptTimeout: Duration{30 * time.Second}},
		Fetch:   FetchConfig{Timeout: Duration{30 * time.Second}, MaxBytes: 5 << 20},
	}
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("BRAIN_USER_ID", &c.User.ID)
	str("BRAIN_TIMEZONE", &c.User.Timezone)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("STORE_BACKEND", &c.Store.Backend)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("MEMGRAPH_URI", &c.Memgraph.URI)
	str("MEMGRAPH_USER", &c.Memgraph.User)
	str("MEMGRAPH_PASSWORD", &c.Memgraph.Password)
	str("AUDIT_BACKEND", &c.Audit.Backend)
	str("AUDIT_PATH", &c.Audit.Path)
	str("SOURCES_KIND", &c.Sources.Kind)
	str("INBOX_DIR", &c.Sources.InboxDir)

	if v, ok := lookup("POLL_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poller.Interval = Duration{d}
		}
	}
	if v, ok := lookup("LLM_MAX_TOKENS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxTokens = n
		}
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and timing invariants.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.User.Timezone); err != nil {
		return fmt.Errorf("invalid configuration: user.timezone: %w", err)
	}
	if c.Poller.Interval.Duration <= 0 {
		return fmt.Errorf("invalid configuration: poller.interval must be positive")
	}
	if c.Inference.Timeout.Duration <= 0 {
		return fmt.Errorf("invalid configuration: inference.timeout must be positive")
	}
	if c.Store.Backend == "memgraph" && c.Memgraph.URI == "" {
		return fmt.Errorf("invalid configuration: memgraph.uri is required for the memgraph backend")
	}
	return nil
}

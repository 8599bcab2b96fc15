package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
)

const (
	envAPIKey   = "CORELYN_API_KEY"
	envAPIURL   = "CORELYN_API_URL"
	envProvider = "CORELYN_PROVIDER"
)

// DefaultSystemPrompt tells the model about the embedded command syntax.
const DefaultSystemPrompt = `You are Corelyn, a useful AI assistant.
If user asks to generate code, give actually working valid code, no AI slop.
Respond only in markdown.

You have access to special tool commands you can embed in your response.
Use them like this:
  <tool:create_file filename.txt>file content here</tool>
  <tool:open_url https://example.com></tool>
  <tool:alert some message to show></tool>
  <tool:set_title New conversation title></tool>

Or using shorthand on its own line:
  @@create_file banana.txt This is the file content

The tool tags are invisible to the user — they get executed automatically.
Only use tools when the user explicitly asks for file creation, opening URLs, etc.`

// providerEndpoints holds the default API base per provider preset.
var providerEndpoints = map[string]string{
	"anthropic": "https://api.anthropic.com/v1",
	"openai":    "https://api.openai.com/v1",
	"cerebras":  "https://api.cerebras.ai/v1",
}

// Config captures runtime configuration for Corelyn.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Provider ProviderConfig `yaml:"provider"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
	UI       UIConfig       `yaml:"ui"`
	Storage  StorageConfig  `yaml:"storage"`
	Tools    ToolsConfig    `yaml:"tools"`
	Triggers TriggersConfig `yaml:"triggers"`
}

// APIConfig holds settings for connecting to the provider API.
type APIConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// ProviderConfig selects the request shaping and the system prompt.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// ModelConfig controls default model behaviour.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
}

// LoggingConfig encapsulates logging preferences.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// UIConfig defines terminal rendering preferences.
type UIConfig struct {
	ShowTimestamps bool          `yaml:"show_timestamps"`
	StreamChunk    int           `yaml:"stream_chunk"`
	StreamDelay    time.Duration `yaml:"stream_delay"`
}

// StorageConfig defines persistence options.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ToolsConfig configures the side effects of embedded commands.
type ToolsConfig struct {
	DownloadDir string `yaml:"download_dir"`
	OpenCommand string `yaml:"open_command"`
}

// TriggersConfig configures the trigger engine and its rules.
type TriggersConfig struct {
	File            string        `yaml:"file"`
	Timeout         time.Duration `yaml:"timeout"`
	CallStackSize   int           `yaml:"call_stack_size"`
	RegistryMaxSize int           `yaml:"registry_max_size"`
	RegexCacheSize  int           `yaml:"regex_cache_size"`
	Rules           []TriggerRule `yaml:"rules"`
}

// TriggerRule is the persisted form of a trigger rule.
type TriggerRule struct {
	Match  string `yaml:"match"`
	Type   string `yaml:"type"`
	Action string `yaml:"action"`
}

// Load reads configuration from the provided path, falling back to defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		if err := loadFile("config.yaml", &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	applyProviderDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	// Expand environment variables in config values
	cfg.API.Key = os.ExpandEnv(cfg.API.Key)
	cfg.API.URL = os.ExpandEnv(cfg.API.URL)
	cfg.Storage.Path = os.ExpandEnv(cfg.Storage.Path)
	cfg.Logging.File = os.ExpandEnv(cfg.Logging.File)
	cfg.Tools.DownloadDir = os.ExpandEnv(cfg.Tools.DownloadDir)
	cfg.Triggers.File = os.ExpandEnv(cfg.Triggers.File)

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if url := strings.TrimSpace(os.Getenv(envAPIURL)); url != "" {
		cfg.API.URL = url
	}
	if key := strings.TrimSpace(os.Getenv(envAPIKey)); key != "" {
		cfg.API.Key = key
	}
	if name := strings.TrimSpace(os.Getenv(envProvider)); name != "" {
		cfg.Provider.Name = name
	}
}

func applyProviderDefaults(cfg *Config) {
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if strings.TrimSpace(cfg.API.URL) == "" {
		cfg.API.URL = providerEndpoints[cfg.Provider.Name]
	}
}

func (c *Config) validate() error {
	var validationErrors []string

	// Provider validation
	if _, ok := providerEndpoints[c.Provider.Name]; !ok {
		validationErrors = append(validationErrors, fmt.Sprintf("Provider (provider.name) must be one of anthropic, openai, cerebras, got %q", c.Provider.Name))
	}

	// API URL validation
	if strings.TrimSpace(c.API.URL) == "" {
		validationErrors = append(validationErrors, "API URL (api.url) must be configured")
	} else if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		validationErrors = append(validationErrors, "API URL must start with http:// or https://")
	} else if _, parseErr := url.Parse(c.API.URL); parseErr != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("API URL is invalid: %v", parseErr))
	}

	// API Key validation
	if strings.Contains(c.API.Key, "${") {
		validationErrors = append(validationErrors, "API key contains unexpanded environment variable, set CORELYN_API_KEY environment variable or replace ${...} in config")
	}
	if strings.TrimSpace(c.API.Key) == "" {
		validationErrors = append(validationErrors, "API key (api.key) must be set or CORELYN_API_KEY environment variable must be provided")
	}

	// Model validation
	if strings.TrimSpace(c.Model.Name) == "" {
		validationErrors = append(validationErrors, "Model name (model.name) cannot be empty")
	} else if len(c.Model.Name) > 200 {
		validationErrors = append(validationErrors, "Model name (model.name) exceeds maximum length of 200 characters")
	}
	if c.Model.Temperature < 0.0 || c.Model.Temperature > 2.0 {
		validationErrors = append(validationErrors, fmt.Sprintf("Model temperature (model.temperature) must be between 0.0 and 2.0, got %.2f", c.Model.Temperature))
	}
	if c.Provider.MaxTokens <= 0 {
		validationErrors = append(validationErrors, "Max tokens (provider.max_tokens) must be positive")
	}

	// Logging level validation
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, validLevel := range validLevels {
		if strings.EqualFold(c.Logging.Level, validLevel) {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		validationErrors = append(validationErrors, fmt.Sprintf("Logging level (logging.level) must be one of: %v, got %q", validLevels, c.Logging.Level))
	}

	// Streaming validation
	if c.UI.StreamChunk <= 0 {
		validationErrors = append(validationErrors, "Stream chunk (ui.stream_chunk) must be positive")
	}
	if c.UI.StreamDelay < 0 {
		validationErrors = append(validationErrors, "Stream delay (ui.stream_delay) cannot be negative")
	}

	// Storage path validation
	if strings.TrimSpace(c.Storage.Path) != "" {
		if info, statErr := os.Stat(c.Storage.Path); statErr == nil && info.IsDir() {
			validationErrors = append(validationErrors, fmt.Sprintf("Storage path (%s) must be a database file, not a directory", c.Storage.Path))
		}
	}

	// Trigger validation
	if c.Triggers.Timeout <= 0 {
		validationErrors = append(validationErrors, "Trigger timeout (triggers.timeout) must be positive")
	}
	if c.Triggers.CallStackSize <= 0 || c.Triggers.RegistryMaxSize <= 0 {
		validationErrors = append(validationErrors, "Trigger limits (triggers.call_stack_size, triggers.registry_max_size) must be positive")
	}
	for i, rule := range c.Triggers.Rules {
		switch strings.ToLower(rule.Type) {
		case "", "contains", "regex":
		default:
			validationErrors = append(validationErrors, fmt.Sprintf("Trigger rule #%d type must be contains or regex, got %q", i+1, rule.Type))
		}
	}

	if len(validationErrors) > 0 {
		return corerrors.NewConfigError("", "validation failed:\n\t• "+strings.Join(validationErrors, "\n\t• "), nil)
	}

	return nil
}

// DataDir returns the directory used for the database and the log file.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "corelyn")
}

func defaultOpenCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "rundll32 url.dll,FileProtocolHandler"
	default:
		return "xdg-open"
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Name:         "anthropic",
			SystemPrompt: DefaultSystemPrompt,
			MaxTokens:    4096,
		},
		Model: ModelConfig{
			Name:        "claude-sonnet-4-6",
			Temperature: 0.7,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(DataDir(), "corelyn.log"),
		},
		UI: UIConfig{
			ShowTimestamps: true,
			StreamChunk:    6,
			StreamDelay:    8 * time.Millisecond,
		},
		Tools: ToolsConfig{
			DownloadDir: defaultDownloadDir(),
			OpenCommand: defaultOpenCommand(),
		},
		Triggers: TriggersConfig{
			Timeout:         2 * time.Second,
			CallStackSize:   120,
			RegistryMaxSize: 64 * 1024,
			RegexCacheSize:  128,
		},
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Vovarama1992/whatsapp-family-router/internal/directory"
)

// Config is everything the router needs, loaded once at startup.
type Config struct {
	Port string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioBaseURL    string

	BotNumber  string
	AgentsFile string
	Agents     []Agent

	PollInterval  time.Duration
	RunTimeout    time.Duration
	DeleteThreads bool

	DatabaseURL string

	LogLevel  string
	LogFormat string
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("agents_file", "agents.yaml")
	v.SetDefault("twilio_base_url", "https://api.twilio.com")
	v.SetDefault("run_poll_interval", time.Second)
	v.SetDefault("run_timeout", 2*time.Minute)
	v.SetDefault("delete_threads", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from v and the agents file it points to.
// It does not check credentials; see Validate.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:             strings.TrimSpace(v.GetString("port")),
		OpenAIAPIKey:     strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIBaseURL:    strings.TrimSpace(v.GetString("openai_base_url")),
		TwilioAccountSID: strings.TrimSpace(v.GetString("twilio_account_sid")),
		TwilioAuthToken:  strings.TrimSpace(v.GetString("twilio_auth_token")),
		TwilioFromNumber: strings.TrimSpace(v.GetString("twilio_from_number")),
		TwilioBaseURL:    strings.TrimSpace(v.GetString("twilio_base_url")),
		BotNumber:        strings.TrimSpace(v.GetString("bot_number")),
		AgentsFile:       strings.TrimSpace(v.GetString("agents_file")),
		PollInterval:     v.GetDuration("run_poll_interval"),
		RunTimeout:       v.GetDuration("run_timeout"),
		DeleteThreads:    v.GetBool("delete_threads"),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("run_poll_interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.RunTimeout < 0 {
		return nil, fmt.Errorf("run_timeout must not be negative, got %s", cfg.RunTimeout)
	}

	file, err := LoadAgentsFile(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	cfg.Agents = file.Agents
	for i := range cfg.Agents {
		if id := strings.TrimSpace(v.GetString(AssistantEnvKey(cfg.Agents[i].ID))); id != "" {
			cfg.Agents[i].AssistantID = id
		}
	}

	if cfg.BotNumber == "" {
		cfg.BotNumber = file.BotNumber
	}
	if cfg.BotNumber == "" {
		cfg.BotNumber = directory.NormalizeSender(cfg.TwilioFromNumber)
	}
	return cfg, nil
}

// AssistantEnvKey is the viper key overriding an agent's assistant id, e.g.
// assistant_id_himson for ASSISTANT_ID_HIMSON.
func AssistantEnvKey(agentID string) string {
	return "assistant_id_" + strings.ToLower(strings.ReplaceAll(agentID, "-", "_"))
}

// Validate fails when a credential needed to serve traffic is missing.
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioFromNumber == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured in %s", c.AgentsFile)
	}
	return nil
}

// Directory builds the sender directory from the configured agents.
func (c *Config) Directory() (*directory.Directory, error) {
	entries := make([]directory.Entry, 0, len(c.Agents))
	for _, a := range c.Agents {
		entries = append(entries, directory.Entry{
			Phone:   a.Phone,
			Profile: directory.AgentProfile{AgentID: a.ID, DisplayName: a.Name},
		})
	}
	return directory.NewDirectory(entries)
}

// Registry builds the assistant registry from the configured agents.
func (c *Config) Registry() *directory.Registry {
	bindings := make(map[string]string, len(c.Agents))
	for _, a := range c.Agents {
		bindings[a.ID] = a.AssistantID
	}
	return directory.NewRegistry(bindings)
}

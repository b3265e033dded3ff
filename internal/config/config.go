package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "COPYDESK"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	N8N         N8NConfig                 `json:"n8n" yaml:"n8n"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address" envconfig:"SERVER_ADDRESS"`
	// StoreDriver selects the scoped store backend: sqlite3, mysql, redis or memory.
	StoreDriver           string `json:"store_driver" yaml:"store_driver" envconfig:"STORE_DRIVER"`
	NotificationTTL       int    `json:"notification_ttl_seconds" yaml:"notification_ttl_seconds" envconfig:"NOTIFICATION_TTL_SECONDS"`
	OrchestratorIdle      int    `json:"orchestrator_idle_minutes" yaml:"orchestrator_idle_minutes" envconfig:"ORCHESTRATOR_IDLE_MINUTES"`
	StoreTTL              int    `json:"store_ttl_hours" yaml:"store_ttl_hours" envconfig:"STORE_TTL_HOURS"`
	MaxUploadMegabytes    int    `json:"max_upload_mb" yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
	SecureCookies         bool   `json:"secure_cookies" yaml:"secure_cookies" envconfig:"SECURE_COOKIES"`
	Debug                 bool   `json:"debug" yaml:"debug" envconfig:"DEBUG"`
	InvalidateAcrossNodes bool   `json:"invalidate_across_nodes" yaml:"invalidate_across_nodes" envconfig:"INVALIDATE_ACROSS_NODES"`
}

// N8NConfig points at the workflow backend. Paths are relative to BaseURL.
type N8NConfig struct {
	BaseURL           string       `json:"base_url" yaml:"base_url" envconfig:"BASE_URL"`
	ListTimeout       int          `json:"list_timeout_seconds" yaml:"list_timeout_seconds" envconfig:"LIST_TIMEOUT_SECONDS"`
	ChatTimeout       int          `json:"chat_timeout_seconds" yaml:"chat_timeout_seconds" envconfig:"CHAT_TIMEOUT_SECONDS"`
	HistoryRetryDelay int          `json:"history_retry_delay_ms" yaml:"history_retry_delay_ms" envconfig:"HISTORY_RETRY_DELAY_MS"`
	Paths             WebhookPaths `json:"paths" yaml:"paths"`
}

type WebhookPaths struct {
	SignIn        string `json:"sign_in" yaml:"sign_in"`
	Agents        string `json:"agents" yaml:"agents"`
	NewChat       string `json:"new_chat" yaml:"new_chat"`
	ChatWindow    string `json:"chat_window" yaml:"chat_window"`
	ChatHistory   string `json:"chat_history" yaml:"chat_history"`
	ChatMessages  string `json:"chat_messages" yaml:"chat_messages"`
	ChatDelete    string `json:"chat_delete" yaml:"chat_delete"`
	MediaList     string `json:"media_list" yaml:"media_list"`
	MediaUpload   string `json:"media_upload" yaml:"media_upload"`
	MediaDelete   string `json:"media_delete" yaml:"media_delete"`
	Scraped       string `json:"scraped" yaml:"scraped"`
	Scrape        string `json:"scrape" yaml:"scrape"`
	Transcribe    string `json:"transcribe" yaml:"transcribe"`
	RagUpload     string `json:"rag_upload" yaml:"rag_upload"`
	RagDelete     string `json:"rag_delete" yaml:"rag_delete"`
	KnowledgeBase string `json:"knowledge_base" yaml:"knowledge_base"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host" envconfig:"HOST"`
	Port     int    `json:"port" yaml:"port" envconfig:"PORT"`
	Username string `json:"username" yaml:"username" envconfig:"USERNAME"`
	Password string `json:"password" yaml:"password" envconfig:"PASSWORD"`
	DB       int    `json:"db" yaml:"db" envconfig:"DB"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; defaults plus environment are used.
// Files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.N8N.BaseURL == "" {
		return nil, fmt.Errorf("n8n base_url must be configured")
	}
	if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && !filepath.IsAbs(db.DSN) && !strings.HasPrefix(db.DSN, "file:") && explicit {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases["sqlite3"] = db
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if err := envconfig.Process(envPrefix, &cfg.BasicConfig); err != nil {
		return fmt.Errorf("process env: %w", err)
	}
	if err := envconfig.Process(envPrefix+"_N8N", &cfg.N8N); err != nil {
		return fmt.Errorf("process n8n env: %w", err)
	}
	if err := envconfig.Process(envPrefix+"_REDIS", &cfg.Redis); err != nil {
		return fmt.Errorf("process redis env: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = ":8090"
	}
	if b.StoreDriver == "" {
		b.StoreDriver = "sqlite3"
	}
	if b.NotificationTTL <= 0 {
		b.NotificationTTL = 5
	}
	if b.OrchestratorIdle <= 0 {
		b.OrchestratorIdle = 30
	}
	if b.StoreTTL <= 0 {
		b.StoreTTL = 24 * 30
	}
	if b.MaxUploadMegabytes <= 0 {
		b.MaxUploadMegabytes = 25
	}

	n := &c.N8N
	n.BaseURL = strings.TrimRight(n.BaseURL, "/")
	if n.ListTimeout <= 0 {
		n.ListTimeout = 10
	}
	if n.ChatTimeout <= 0 {
		n.ChatTimeout = 30
	}
	if n.HistoryRetryDelay <= 0 {
		n.HistoryRetryDelay = 1000
	}
	n.Paths = n.Paths.withDefaults()

	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: "file:copydesk.db?_foreign_keys=on"}
	}
}

// DefaultPaths are the webhook paths used by the stock n8n workflows.
func DefaultPaths() WebhookPaths {
	return WebhookPaths{}.withDefaults()
}

func (p WebhookPaths) withDefaults() WebhookPaths {
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&p.SignIn, "/webhook/auth/signin")
	set(&p.Agents, "/webhook/agents")
	set(&p.NewChat, "/webhook/new-chat")
	set(&p.ChatWindow, "/webhook/chat-window")
	set(&p.ChatHistory, "/webhook/chat-history")
	set(&p.ChatMessages, "/webhook/chat-messages")
	set(&p.ChatDelete, "/webhook/chat-delete")
	set(&p.MediaList, "/webhook/media")
	set(&p.MediaUpload, "/webhook/media/upload")
	set(&p.MediaDelete, "/webhook/media/delete")
	set(&p.Scraped, "/webhook/scraped-contents")
	set(&p.Scrape, "/webhook/scrape")
	set(&p.Transcribe, "/webhook/transcribe")
	set(&p.RagUpload, "/webhook/rag/upload")
	set(&p.RagDelete, "/webhook/rag/delete")
	set(&p.KnowledgeBase, "/webhook/knowledge-base")
	return p
}

// ListTimeoutDuration bounds agent list and other metadata calls.
func (n N8NConfig) ListTimeoutDuration() time.Duration {
	return time.Duration(n.ListTimeout) * time.Second
}

// ChatTimeoutDuration bounds chat-turn completion calls.
func (n N8NConfig) ChatTimeoutDuration() time.Duration {
	return time.Duration(n.ChatTimeout) * time.Second
}

func (n N8NConfig) HistoryRetryDelayDuration() time.Duration {
	return time.Duration(n.HistoryRetryDelay) * time.Millisecond
}

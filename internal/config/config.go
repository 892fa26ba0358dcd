package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Mirrors   MirrorConfig     `json:"mirrors"`
	Database  DatabaseConfig   `json:"database"`
	Embedding EmbeddingConfig  `json:"embedding"`
	World     WorldConfig      `json:"world"`
	Tuning    Tuning           `json:"tuning"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// MirrorConfig configures outward chat mirrors for spectating the simulation.
type MirrorConfig struct {
	Slack   SlackMirrorConfig   `json:"slack"`
	Discord DiscordMirrorConfig `json:"discord"`
}

type SlackMirrorConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	AppToken  string `json:"app_token"`
	ChannelID string `json:"channel_id"`
}

type DiscordMirrorConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// WorldConfig controls population and channel bootstrap.
type WorldConfig struct {
	MinParticipants int    `json:"min_participants"`
	MaxParticipants int    `json:"max_participants"`
	MinChannels     int    `json:"min_channels"`
	MaxChannels     int    `json:"max_channels"`
	Language        string `json:"language"`
	Model           string `json:"model"`
	AdminName       string `json:"admin_name"`
}

// Tuning exposes the behavioral constants of the simulation as named knobs.
// Zero values fall back to the stock defaults. The ordering of responder
// selection tiers is part of the behavioral contract and is not configurable.
type Tuning struct {
	MainTick      time.Duration `json:"main_tick"`
	PresenceTick  time.Duration `json:"presence_tick"`
	ProactiveTick time.Duration `json:"proactive_tick"`
	CommunityTick time.Duration `json:"community_tick"`

	// Presence transitions.
	OnlineChanceFactor float64       `json:"online_chance_factor"` // scaled by activity level
	JoinMessageChance  float64       `json:"join_message_chance"`
	AFKIdle            time.Duration `json:"afk_idle"`
	AFKChance          float64       `json:"afk_chance"`
	IgnoredOffline     float64       `json:"ignored_offline_chance"`
	ActiveIdle         time.Duration `json:"active_idle"`
	AFKRecovery        float64       `json:"afk_recovery_chance"`
	AFKRecoveryOnline  float64       `json:"afk_recovery_online_bias"`

	// Emotional drift.
	EnergyDecay     float64       `json:"energy_decay"`
	EnergyFloor     float64       `json:"energy_floor"`
	EngagementDecay float64       `json:"engagement_decay"`
	MoodCooldown    time.Duration `json:"mood_cooldown"`
	MoodShiftChance float64       `json:"mood_shift_chance"`

	// Decision oracle.
	InitiateChance   float64 `json:"initiate_chance"`
	QualityThreshold int     `json:"quality_threshold"`
	FallbackChance   float64 `json:"fallback_chance"`

	// Responder selection.
	RecentWindow       int           `json:"recent_window"`
	TopicMatchChance   float64       `json:"topic_match_chance"`
	ConversationChance float64       `json:"conversation_chance"`
	ConversationMaxAge time.Duration `json:"conversation_max_age"`

	// Delay calculation.
	BaseDelay time.Duration `json:"base_delay"`

	// Memory caps.
	JournalCap         int `json:"journal_cap"`
	ReactiveJournalCap int `json:"reactive_journal_cap"`
	EventCap           int `json:"event_cap"`

	// Proactive and flow sub-loops.
	QuietThreshold  time.Duration `json:"quiet_threshold"`
	ProactiveChance float64       `json:"proactive_chance"`
	FlowChance      float64       `json:"flow_chance"`
	FlowRespond     float64       `json:"flow_respond_chance"`
}

// DefaultTuning returns the stock behavioral constants.
func DefaultTuning() Tuning {
	return Tuning{
		MainTick:      2 * time.Second,
		PresenceTick:  8 * time.Second,
		ProactiveTick: 15 * time.Second,
		CommunityTick: 20 * time.Second,

		OnlineChanceFactor: 0.1,
		JoinMessageChance:  0.4,
		AFKIdle:            180 * time.Second,
		AFKChance:          0.3,
		IgnoredOffline:     0.2,
		ActiveIdle:         90 * time.Second,
		AFKRecovery:        0.15,
		AFKRecoveryOnline:  0.6,

		EnergyDecay:     0.01,
		EnergyFloor:     0.1,
		EngagementDecay: 0.02,
		MoodCooldown:    2 * time.Minute,
		MoodShiftChance: 0.1,

		InitiateChance:   0.08,
		QualityThreshold: 6,
		FallbackChance:   0.15,

		RecentWindow:       15,
		TopicMatchChance:   0.7,
		ConversationChance: 0.5,
		ConversationMaxAge: 60 * time.Second,

		BaseDelay: 3 * time.Second,

		JournalCap:         100,
		ReactiveJournalCap: 50,
		EventCap:           20,

		QuietThreshold:  10 * time.Second,
		ProactiveChance: 0.15,
		FlowChance:      0.3,
		FlowRespond:     0.4,
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file from path and substitutes environment
// variable references. Unset tuning knobs fall back to their stock values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Config{Tuning: DefaultTuning()}
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.World.MinParticipants == 0 {
		c.World.MinParticipants = 5
	}
	if c.World.MaxParticipants == 0 {
		c.World.MaxParticipants = 20
	}
	if c.World.MinChannels == 0 {
		c.World.MinChannels = 3
	}
	if c.World.MaxChannels == 0 {
		c.World.MaxChannels = 10
	}
	if c.World.Language == "" {
		c.World.Language = "English"
	}
	if c.World.AdminName == "" {
		c.World.AdminName = "Operator"
	}
}

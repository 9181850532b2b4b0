// Package config handles configuration loading and defaults.
//
// Every tuning constant of the engine lives here: classification
// thresholds, per-mode intervals and cooldowns, nudge cooldowns, LLM
// timeouts, and the endpoints of the two local services we talk to
// (the activity tracker and the language model). Values are defaults
// merged with an optional YAML file, never hard-coded at call sites.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the daemon.
type Config struct {
	StoragePath string `yaml:"storage_path"`
	ListenAddr  string `yaml:"listen_addr"`

	Tracker  TrackerConfig  `yaml:"tracker"`
	LLM      LLMConfig      `yaml:"llm"`
	Classify ClassifyConfig `yaml:"classify"`
	Modes    ModesConfig    `yaml:"modes"`
	Nudges   NudgeConfig    `yaml:"nudges"`

	// Free-text context embedded into prompts, per active mode.
	UserContext string `yaml:"user_context"`
	StudyFocus  string `yaml:"study_focus"`
	CoachTask   string `yaml:"coach_task"`
}

// TrackerConfig holds settings for the activity tracker service.
type TrackerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MergeGap       time.Duration `yaml:"merge_gap"`
	MetadataTTL    time.Duration `yaml:"metadata_ttl"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	WindowBucketID string        `yaml:"window_bucket_id"` // empty = discover
	AFKBucketID    string        `yaml:"afk_bucket_id"`    // empty = discover
}

// LLMConfig holds settings for the language-model service.
type LLMConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	NumPredict      int           `yaml:"num_predict"`
	NudgeTimeout    time.Duration `yaml:"nudge_timeout"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
}

// ClassifyConfig holds the state-derivation thresholds.
//
// The exact numbers are product-tuning constants, not algorithmic
// ones, so they are exposed here with documented defaults rather than
// hard-coded at the call sites.
type ClassifyConfig struct {
	HighThreshold     int           `yaml:"high_threshold"`      // focus score >= this -> productive
	MidThreshold      int           `yaml:"mid_threshold"`       // focus score >= this -> moderate
	LowThreshold      int           `yaml:"low_threshold"`       // focus score >= this -> chilling
	WorkScore         int           `yaml:"work_score"`          // productivity score >= this reclassifies an app as work
	MinActiveFloor    time.Duration `yaml:"min_active_floor"`    // below this active time the window is afk
	RapidSwitchCount  int           `yaml:"rapid_switch_count"`  // app switches within the window that count as rapid
	RapidSwitchWindow time.Duration `yaml:"rapid_switch_window"` // sliding window for rapid-switch detection
}

// ModeConfig holds the cadence of one mode.
type ModeConfig struct {
	Interval time.Duration `yaml:"interval"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// ModesConfig holds per-mode cadence overrides.
type ModesConfig struct {
	Ghost ModeConfig `yaml:"ghost"`
	Chill ModeConfig `yaml:"chill"`
	Study ModeConfig `yaml:"study"`
	Coach ModeConfig `yaml:"coach"`
}

// NudgeConfig holds the state-triggered cooldowns for proactive nudges,
// independent of the scheduled summary cycle. A state with no entry
// (afk) never nudges.
type NudgeConfig struct {
	Productive   time.Duration `yaml:"productive"`
	Moderate     time.Duration `yaml:"moderate"`
	Chilling     time.Duration `yaml:"chilling"`
	Unproductive time.Duration `yaml:"unproductive"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	return &Config{
		StoragePath: filepath.Join(home, ".local", "share", "attune"),
		ListenAddr:  "127.0.0.1:5612",

		Tracker: TrackerConfig{
			Host:          "localhost",
			Port:          5600,
			Timeout:       10 * time.Second,
			MergeGap:      5 * time.Second,
			MetadataTTL:   15 * time.Minute,
			RetryAttempts: 3,
			RetryBackoff:  250 * time.Millisecond,
		},

		LLM: LLMConfig{
			Host:            "localhost",
			Port:            11434,
			Model:           "llama3.2",
			Temperature:     0.3,
			NumPredict:      300,
			NudgeTimeout:    10 * time.Second,
			AnalysisTimeout: 30 * time.Second,
		},

		Classify: ClassifyConfig{
			HighThreshold:     75,
			MidThreshold:      60,
			LowThreshold:      40,
			WorkScore:         70,
			MinActiveFloor:    time.Minute,
			RapidSwitchCount:  5,
			RapidSwitchWindow: 2 * time.Minute,
		},

		Modes: ModesConfig{
			Ghost: ModeConfig{Interval: 60 * time.Minute, Cooldown: 60 * time.Minute},
			Chill: ModeConfig{Interval: 60 * time.Minute, Cooldown: 60 * time.Minute},
			Study: ModeConfig{Interval: 5 * time.Minute, Cooldown: 5 * time.Minute},
			Coach: ModeConfig{Interval: 15 * time.Minute, Cooldown: 15 * time.Minute},
		},

		Nudges: NudgeConfig{
			Productive:   45 * time.Minute,
			Moderate:     15 * time.Minute,
			Chilling:     15 * time.Minute,
			Unproductive: 5 * time.Minute,
		},
	}
}

// Load loads configuration from the default paths, falling back to defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	configPaths := []string{
		filepath.Join(home, ".config", "attune", "config.yaml"),
		filepath.Join(home, ".local", "share", "attune", "config.yaml"),
	}

	for _, path := range configPaths {
		if err := loadFromFile(cfg, path); err == nil {
			return cfg, nil
		}
	}

	return cfg, nil
}

// LoadFile loads configuration from an explicit path, merged over defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFromFile reads a YAML config file and merges it into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// TrackerBaseURL returns the base URL of the activity tracker API.
func (c *Config) TrackerBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Tracker.Host, c.Tracker.Port)
}

// LLMBaseURL returns the base URL of the language-model API.
func (c *Config) LLMBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.LLM.Host, c.LLM.Port)
}

// ContextFor returns the free-text user context for a mode name.
func (c *Config) ContextFor(mode string) string {
	switch mode {
	case "study":
		if c.StudyFocus != "" {
			return "Currently studying: " + c.StudyFocus + ". Pay special attention to distractions from study material."
		}
		return "Currently studying. Pay special attention to distractions from study material."
	case "coach":
		if c.CoachTask != "" {
			return "Working toward: " + c.CoachTask
		}
		return c.UserContext
	default:
		return c.UserContext
	}
}

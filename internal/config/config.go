package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.yaml.in/yaml/v3"
)

const (
	BackendServer   = "server"
	BackendDeepgram = "deepgram"

	DefaultTone = "professionale"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrMissingAPIKey  = errors.New("deepgram backend requires DEEPGRAM_API_KEY")
)

// Config is the agent configuration. Path is where it was loaded from.
type Config struct {
	Path string `yaml:"-"`

	Backend       string              `yaml:"backend"`
	Server        ServerConfig        `yaml:"server"`
	Deepgram      DeepgramConfig      `yaml:"deepgram"`
	Audio         AudioConfig         `yaml:"audio"`
	Hotkeys       HotkeysConfig       `yaml:"hotkeys"`
	Tone          ToneConfig          `yaml:"tone"`
	Rules         RulesConfig         `yaml:"rules"`
	Session       SessionConfig       `yaml:"session"`
	Delivery      DeliveryConfig      `yaml:"delivery"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	HTTP2          bool          `yaml:"http2"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
	Punctuate   bool   `yaml:"punctuate"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type HotkeysConfig struct {
	Toggle          string        `yaml:"toggle_recording"`
	Quit            string        `yaml:"quit"`
	Debounce        time.Duration `yaml:"debounce"`
	RepeatWhileHeld bool          `yaml:"repeat_while_held"`
}

type ToneConfig struct {
	Default     string    `yaml:"default"`
	Presets     ToneNames `yaml:"presets"`
	CustomTones ToneNames `yaml:"custom_tones"`
}

// Names lists presets then custom tones, in file order, without duplicates.
func (t ToneConfig) Names() []string {
	return lo.Uniq(append(append([]string{}, t.Presets...), t.CustomTones...))
}

// ToneNames decodes either a mapping (tone name to prompt) or a sequence of
// names. Mapping order is preserved.
type ToneNames []string

func (n *ToneNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		names := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			names = append(names, node.Content[i].Value)
		}
		*n = names
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*n = names
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*n = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: tones must be a mapping or a list", node.Line)
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
	Watch          bool   `yaml:"watch"`
}

type SessionConfig struct {
	MinPayloadBytes int           `yaml:"min_payload_bytes"`
	ChunkSize       int           `yaml:"chunk_size"`
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DeliveryConfig struct {
	AutoPaste  bool          `yaml:"auto_paste"`
	PasteDelay time.Duration `yaml:"paste_delay"`
}

type NotificationsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	Icon    string `yaml:"icon"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Backend: BackendServer,
		Server: ServerConfig{
			URL:            "http://localhost:8899",
			RequestTimeout: 60 * time.Second,
			ProbeTimeout:   5 * time.Second,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
			Punctuate:   true,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			SampleRate:      16000,
			Channels:        1,
		},
		Hotkeys: HotkeysConfig{
			Toggle:   "<ctrl>+<shift>+space",
			Quit:     "<ctrl>+<shift>+q",
			Debounce: 500 * time.Millisecond,
		},
		Tone: ToneConfig{Default: DefaultTone},
		Rules: RulesConfig{
			IterationLimit: 30,
			Watch:          true,
		},
		Session: SessionConfig{
			MinPayloadBytes: 1000,
			ChunkSize:       4096,
			FinalizeTimeout: 10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Delivery: DeliveryConfig{
			AutoPaste:  true,
			PasteDelay: 100 * time.Millisecond,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Title:   "Whisprly",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load finds the config file and reads it. The search order is
// $WHISPRLY_CONFIG, ~/.config/whisprly/config.yaml, ./config.yaml.
func Load() (Config, error) {
	path, err := resolvePath()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile reads one config file, then applies environment overrides and
// defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	cfg.Path = path

	applyEnv(&cfg)
	applyFallbacks(&cfg)
	return cfg, nil
}

func resolvePath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WHISPRLY_CONFIG")); explicit != "" {
		return explicit, nil
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "whisprly", "config.yaml"))
	}
	candidates = append(candidates, "config.yaml")

	if found := firstExisting(candidates...); found != "" {
		return found, nil
	}
	return "", fmt.Errorf("%w: looked in %s", ErrConfigNotFound, strings.Join(candidates, ", "))
}

func applyEnv(cfg *Config) {
	cfg.Backend = strings.ToLower(envOrDefault("WHISPRLY_BACKEND", cfg.Backend))
	cfg.Server.URL = envOrDefault("WHISPRLY_SERVER_URL", cfg.Server.URL)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Audio.RecorderCommand = envOrDefault("WHISPRLY_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("WHISPRLY_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("WHISPRLY_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("WHISPRLY_SAMPLE_RATE", cfg.Audio.SampleRate)

	cfg.Tone.Default = envOrDefault("WHISPRLY_TONE", cfg.Tone.Default)
	cfg.Rules.Path = envOrDefault("WHISPRLY_RULES_FILE", cfg.Rules.Path)
	cfg.Delivery.AutoPaste = envOrDefaultBool("WHISPRLY_AUTO_PASTE", cfg.Delivery.AutoPaste)
	cfg.Log.Level = envOrDefault("WHISPRLY_LOG_LEVEL", cfg.Log.Level)
}

func applyFallbacks(cfg *Config) {
	def := Default()

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Hotkeys.Debounce < 0 {
		cfg.Hotkeys.Debounce = def.Hotkeys.Debounce
	}
	if strings.TrimSpace(cfg.Tone.Default) == "" {
		cfg.Tone.Default = def.Tone.Default
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = def.Rules.IterationLimit
	}
	if cfg.Session.MinPayloadBytes <= 0 {
		cfg.Session.MinPayloadBytes = def.Session.MinPayloadBytes
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = def.Session.ChunkSize
	}
	if cfg.Session.FinalizeTimeout <= 0 {
		cfg.Session.FinalizeTimeout = def.Session.FinalizeTimeout
	}
	if cfg.Session.ShutdownTimeout <= 0 {
		cfg.Session.ShutdownTimeout = def.Session.ShutdownTimeout
	}
	if cfg.Notifications.Title == "" {
		cfg.Notifications.Title = def.Notifications.Title
	}

	if cfg.Rules.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Rules.Path = filepath.Join(home, ".config", "whisprly", "substitutions.rules")
		}
	}
	cfg.Rules.Path = expandHome(cfg.Rules.Path)
}

// Validate reports settings that make the selected backend unusable.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendServer:
		if strings.TrimSpace(c.Server.URL) == "" {
			return errors.New("server backend requires server.url")
		}
	case BackendDeepgram:
		if strings.TrimSpace(c.Deepgram.APIKey) == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

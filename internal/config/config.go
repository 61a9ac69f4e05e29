package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"timekeeper/internal/templatefmt"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName    = "timekeeper"
	defaultTickIntervalMS = 1000
	defaultHTTPListen     = "127.0.0.1:8080"
	defaultHealthPath     = "/healthz"
	defaultMetricsPath    = "/metrics"
	defaultStorageDir     = "./data"
	defaultSQLitePath     = "./data/timekeeper.db"
	defaultNATSURL        = "nats://127.0.0.1:4222"
	defaultNATSBucket     = "timekeeper"
	defaultSoundDir       = "./sounds"
	defaultTelegramAPI    = "https://api.telegram.org"
	defaultEventSubject   = "timekeeper.notifications"
	defaultEventStream    = "TIMEKEEPER_NOTIFICATIONS"

	// StorageBackendMemory keeps collections in process memory.
	StorageBackendMemory = "memory"
	// StorageBackendFile keeps one JSON file per collection.
	StorageBackendFile = "file"
	// StorageBackendSQLite keeps snapshots in one SQLite table.
	StorageBackendSQLite = "sqlite"
	// StorageBackendNATS keeps snapshots in a JetStream KV bucket.
	StorageBackendNATS = "nats"

	// SoundBackendLog only logs play/stop calls.
	SoundBackendLog = "log"
	// SoundBackendExec runs an external player command.
	SoundBackendExec = "exec"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "TIMEKEEPER_"
)

// Config holds runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Storage StorageConfig `toml:"storage"`
	Sound   SoundConfig   `toml:"sound"`
	Notify  NotifyConfig  `toml:"notify"`
	HTTP    HTTPConfig    `toml:"http"`
}

// ServiceConfig contains process-level settings.
// Params: name, scheduler tick cadence, and wall-clock location.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name           string `toml:"name"`
	TickIntervalMS int    `toml:"tick_interval_ms"`
	Location       string `toml:"location"`
}

// TickInterval converts configured cadence into duration.
func (s ServiceConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMS) * time.Millisecond
}

// LoadLocation resolves configured location name.
// Params: none.
// Returns: time.Local for empty or "Local", otherwise IANA zone.
func (s ServiceConfig) LoadLocation() (*time.Location, error) {
	name := strings.TrimSpace(s.Location)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// StorageConfig selects persistence backend.
// Params: backend name and backend-specific locations.
// Returns: store factory input.
type StorageConfig struct {
	Backend    string   `toml:"backend"`
	Dir        string   `toml:"dir"`
	SQLitePath string   `toml:"sqlite_path"`
	NATSURL    []string `toml:"nats_url"`
	NATSBucket string   `toml:"nats_bucket"`
}

// SoundConfig selects audio backend.
// Params: backend, resource directory, and player command for exec backend.
// Returns: sound player settings.
type SoundConfig struct {
	Backend string   `toml:"backend"`
	Dir     string   `toml:"dir"`
	Command []string `toml:"command"`
}

// NotifyConfig defines notification presentation.
// Params: theme, message templates, and optional Telegram/NATS mirrors.
// Returns: notification channel settings.
type NotifyConfig struct {
	Theme     string            `toml:"theme"`
	Templates NotifyTemplates   `toml:"templates"`
	Telegram  TelegramPresenter `toml:"telegram"`
	NATS      NATSPresenter     `toml:"nats"`
}

// NotifyTemplates holds text/template bodies for notification text.
// Params: title/message bodies for alarms and timers.
// Returns: templates rendered by notify.Renderer.
type NotifyTemplates struct {
	AlarmTitle   string `toml:"alarm_title"`
	AlarmMessage string `toml:"alarm_message"`
	TimerTitle   string `toml:"timer_title"`
	TimerMessage string `toml:"timer_message"`
}

// TelegramPresenter mirrors presented notifications to one Telegram chat.
// Params: enabled flag, bot token, chat ID, and API base URL.
// Returns: Telegram mirror configuration.
type TelegramPresenter struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
}

// NATSPresenter publishes notification lifecycle events to a JetStream subject.
type NATSPresenter struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Stream  string `toml:"stream"`
	Subject string `toml:"subject"`
}

// HTTPConfig configures presentation API endpoint.
type HTTPConfig struct {
	Enabled      bool     `toml:"enabled"`
	Listen       string   `toml:"listen"`
	HealthPath   string   `toml:"health_path"`
	MetricsPath  string   `toml:"metrics_path"`
	AllowOrigins []string `toml:"allow_origins"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: at most one of file path or directory path; empty means defaults only.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
	// EnvFile is optional dotenv file loaded before applying overrides.
	EnvFile string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file, directory, and dotenv arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath, envFile string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}
	return ConfigSource{File: filePath, Dir: dirPath, EnvFile: strings.TrimSpace(envFile)}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file, directory, or defaults-only mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	switch {
	case src.File != "":
		cfg, err = loadFile(src.File)
	case src.Dir != "":
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, src.EnvFile); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays non-empty sections of source onto destination.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if hasStorageConfig(src.Storage) {
		dst.Storage = src.Storage
	}
	if hasSoundConfig(src.Sound) {
		dst.Sound = src.Sound
	}
	if src.Notify != (NotifyConfig{}) {
		dst.Notify = src.Notify
	}
	if hasHTTPConfig(src.HTTP) {
		dst.HTTP = src.HTTP
	}
}

func hasStorageConfig(cfg StorageConfig) bool {
	return cfg.Backend != "" || cfg.Dir != "" || cfg.SQLitePath != "" || len(cfg.NATSURL) > 0 || cfg.NATSBucket != ""
}

func hasSoundConfig(cfg SoundConfig) bool {
	return cfg.Backend != "" || cfg.Dir != "" || len(cfg.Command) > 0
}

func hasHTTPConfig(cfg HTTPConfig) bool {
	return cfg.Enabled || cfg.Listen != "" || cfg.HealthPath != "" || cfg.MetricsPath != "" ||
		len(cfg.AllowOrigins) > 0 || cfg.MaxBodyBytes != 0
}

// applyEnv loads optional dotenv file and applies TIMEKEEPER_* overrides.
// Params: config to mutate and optional dotenv path.
// Returns: dotenv read error or malformed override value.
func applyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	setString := func(key string, dst *string) {
		if value, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(value)
		}
	}
	setString("LOCATION", &cfg.Service.Location)
	setString("STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("STORAGE_DIR", &cfg.Storage.Dir)
	setString("SQLITE_PATH", &cfg.Storage.SQLitePath)
	setString("NATS_BUCKET", &cfg.Storage.NATSBucket)
	setString("SOUND_BACKEND", &cfg.Sound.Backend)
	setString("SOUND_DIR", &cfg.Sound.Dir)
	setString("THEME", &cfg.Notify.Theme)
	setString("HTTP_LISTEN", &cfg.HTTP.Listen)
	setString("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &cfg.Notify.Telegram.ChatID)
	setString("NOTIFY_NATS_URL", &cfg.Notify.NATS.URL)

	if value, ok := os.LookupEnv(EnvPrefix + "NATS_URL"); ok {
		cfg.Storage.NATSURL = splitList(value)
	}
	if value, ok := os.LookupEnv(EnvPrefix + "TICK_INTERVAL_MS"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%sTICK_INTERVAL_MS: %w", EnvPrefix, err)
		}
		cfg.Service.TickIntervalMS = parsed
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// applyDefaults fills omitted settings.
// Params: config to mutate.
// Returns: defaults side-effect in cfg.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.TickIntervalMS <= 0 {
		cfg.Service.TickIntervalMS = defaultTickIntervalMS
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendFile
	}
	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		cfg.Storage.Dir = defaultStorageDir
	}
	if strings.TrimSpace(cfg.Storage.SQLitePath) == "" {
		cfg.Storage.SQLitePath = defaultSQLitePath
	}
	if len(cfg.Storage.NATSURL) == 0 {
		cfg.Storage.NATSURL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Storage.NATSBucket) == "" {
		cfg.Storage.NATSBucket = defaultNATSBucket
	}

	cfg.Sound.Backend = strings.ToLower(strings.TrimSpace(cfg.Sound.Backend))
	if cfg.Sound.Backend == "" {
		cfg.Sound.Backend = SoundBackendLog
	}
	if strings.TrimSpace(cfg.Sound.Dir) == "" {
		cfg.Sound.Dir = defaultSoundDir
	}

	cfg.Notify.Theme = strings.ToLower(strings.TrimSpace(cfg.Notify.Theme))
	if cfg.Notify.Theme == "" {
		cfg.Notify.Theme = "light"
	}
	fillTemplateDefaults(&cfg.Notify.Templates)
	if strings.TrimSpace(cfg.Notify.Telegram.APIBase) == "" {
		cfg.Notify.Telegram.APIBase = defaultTelegramAPI
	}
	if strings.TrimSpace(cfg.Notify.NATS.URL) == "" {
		cfg.Notify.NATS.URL = defaultNATSURL
	}
	if strings.TrimSpace(cfg.Notify.NATS.Stream) == "" {
		cfg.Notify.NATS.Stream = defaultEventStream
	}
	if strings.TrimSpace(cfg.Notify.NATS.Subject) == "" {
		cfg.Notify.NATS.Subject = defaultEventSubject
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 64 << 10
	}
}

// DefaultTemplates returns built-in notification text templates.
func DefaultTemplates() NotifyTemplates {
	var templates NotifyTemplates
	fillTemplateDefaults(&templates)
	return templates
}

func fillTemplateDefaults(templates *NotifyTemplates) {
	if strings.TrimSpace(templates.AlarmTitle) == "" {
		templates.AlarmTitle = "⏰ {{ .Name }}!"
	}
	if strings.TrimSpace(templates.AlarmMessage) == "" {
		templates.AlarmMessage = "Alarm for {{ fmt12h .Time }}"
	}
	if strings.TrimSpace(templates.TimerTitle) == "" {
		templates.TimerTitle = "⏱ Timer Finished!"
	}
	if strings.TrimSpace(templates.TimerMessage) == "" {
		templates.TimerMessage = `Timer "{{ .Name }}" has reached zero`
	}
}

// validateConfig validates normalized configuration.
// Params: config after defaults.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if cfg.Service.TickIntervalMS < 10 {
		return fmt.Errorf("service.tick_interval_ms must be >=10, got %d", cfg.Service.TickIntervalMS)
	}
	if _, err := cfg.Service.LoadLocation(); err != nil {
		return fmt.Errorf("service.location is invalid: %w", err)
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	switch cfg.Storage.Backend {
	case StorageBackendMemory, StorageBackendFile, StorageBackendSQLite, StorageBackendNATS:
	default:
		return fmt.Errorf("storage.backend has unsupported value %q", cfg.Storage.Backend)
	}

	switch cfg.Sound.Backend {
	case SoundBackendLog:
	case SoundBackendExec:
		if len(cfg.Sound.Command) == 0 || strings.TrimSpace(cfg.Sound.Command[0]) == "" {
			return errors.New("sound.command is required for sound.backend=exec")
		}
	default:
		return fmt.Errorf("sound.backend has unsupported value %q", cfg.Sound.Backend)
	}

	switch cfg.Notify.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("notify.theme has unsupported value %q", cfg.Notify.Theme)
	}
	for path, body := range map[string]string{
		"notify.templates.alarm_title":   cfg.Notify.Templates.AlarmTitle,
		"notify.templates.alarm_message": cfg.Notify.Templates.AlarmMessage,
		"notify.templates.timer_title":   cfg.Notify.Templates.TimerTitle,
		"notify.templates.timer_message": cfg.Notify.Templates.TimerMessage,
	} {
		if _, err := templatefmt.ParseNotificationTemplate(path, body); err != nil {
			return fmt.Errorf("%s is invalid: %w", path, err)
		}
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when enabled")
		}
	}
	if cfg.Notify.NATS.Enabled {
		if strings.ContainsAny(cfg.Notify.NATS.Stream, " .*>") {
			return fmt.Errorf("notify.nats.stream has invalid name %q", cfg.Notify.NATS.Stream)
		}
		if strings.ContainsAny(cfg.Notify.NATS.Subject, " *>") {
			return fmt.Errorf("notify.nats.subject must be a literal subject, got %q", cfg.Notify.NATS.Subject)
		}
	}

	if cfg.HTTP.Enabled {
		for name, path := range map[string]string{
			"http.health_path":  cfg.HTTP.HealthPath,
			"http.metrics_path": cfg.HTTP.MetricsPath,
		} {
			if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("%s must start with /", name)
			}
		}
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}

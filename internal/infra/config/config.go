package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"thoughtstream/internal/domain"
)

// Config is the top-level configuration.
type Config struct {
	Stream    StreamConfig    `yaml:"stream"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Session   SessionConfig   `yaml:"session"`
	Animation AnimationConfig `yaml:"animation"`
	Display   DisplayConfig   `yaml:"display"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// StreamConfig holds the websocket endpoint settings.
type StreamConfig struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"` // sent after every open; may be "enc:..."
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	SendRate       float64       `yaml:"send_rate"`
	SendBurst      int           `yaml:"send_burst"`
	ReadLimit      int64         `yaml:"read_limit"`
}

// ReconcileConfig tunes live/history reconciliation.
type ReconcileConfig struct {
	MinOverlap      int           `yaml:"min_overlap"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	BacklogCap      int           `yaml:"backlog_cap"`
	BacklogKeep     int           `yaml:"backlog_keep"`
}

// SessionConfig holds loading and restart timing.
type SessionConfig struct {
	MinLoading            time.Duration `yaml:"min_loading"`
	RestartReconnectDelay time.Duration `yaml:"restart_reconnect_delay"`
	DefaultPrompt         string        `yaml:"default_prompt"`
}

// AnimationConfig holds typewriter timing.
type AnimationConfig struct {
	MinCharDelay time.Duration `yaml:"min_char_delay"`
	MaxCharDelay time.Duration `yaml:"max_char_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	CursorBlink  time.Duration `yaml:"cursor_blink"`
}

// DisplayConfig holds terminal renderer settings.
type DisplayConfig struct {
	AltScreen bool   `yaml:"alt_screen"`
	Title     string `yaml:"title"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Output   string `yaml:"output"` // stdout exporter target: stdout, stderr or a file path
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Stream: StreamConfig{
			URL:            "ws://localhost:8765/ws",
			ConnectTimeout: 10 * time.Second,
			ReconnectDelay: 100 * time.Millisecond,
			SendRate:       5,
			SendBurst:      5,
			ReadLimit:      4 << 20,
		},
		Reconcile: ReconcileConfig{
			MinOverlap:      10,
			DuplicateWindow: 750 * time.Millisecond,
			BacklogCap:      5000,
			BacklogKeep:     2000,
		},
		Session: SessionConfig{
			MinLoading:            time.Second,
			RestartReconnectDelay: 100 * time.Millisecond,
		},
		Animation: AnimationConfig{
			MinCharDelay: 25 * time.Millisecond,
			MaxCharDelay: 50 * time.Millisecond,
			SettleDelay:  50 * time.Millisecond,
			CursorBlink:  500 * time.Millisecond,
		},
		Display: DisplayConfig{
			AltScreen: true,
			Title:     "thoughtstream",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
			Output:   "stderr",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, domain.WrapOp("read config", fmt.Errorf("%w: %v", domain.ErrConfigLoad, err))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.WrapOp("parse config", fmt.Errorf("%w: %v", domain.ErrConfigLoad, err))
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if err := decryptSecrets(cfg, os.Getenv("THOUGHTSTREAM_CONFIG_KEY")); err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps THOUGHTSTREAM_* env vars to config fields. Values
// that fail to parse are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THOUGHTSTREAM_STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv("THOUGHTSTREAM_STREAM_TOKEN"); v != "" {
		cfg.Stream.Token = v
	}
	if v := os.Getenv("THOUGHTSTREAM_STREAM_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.ConnectTimeout = d
		}
	}
	if v := os.Getenv("THOUGHTSTREAM_STREAM_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.ReconnectDelay = d
		}
	}
	if v := os.Getenv("THOUGHTSTREAM_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("THOUGHTSTREAM_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("THOUGHTSTREAM_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("THOUGHTSTREAM_TRACER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
	if v := os.Getenv("THOUGHTSTREAM_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("THOUGHTSTREAM_DISPLAY_ALT_SCREEN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Display.AltScreen = b
		}
	}
}

// decryptSecrets replaces "enc:..." values with their plaintext. An encrypted
// value without a passphrase is an error rather than a silent passthrough.
func decryptSecrets(cfg *Config, passphrase string) error {
	if !strings.HasPrefix(cfg.Stream.Token, "enc:") {
		return nil
	}
	if passphrase == "" {
		return domain.NewDomainError("config.decryptSecrets", domain.ErrDecryption,
			"stream.token is encrypted but THOUGHTSTREAM_CONFIG_KEY is not set")
	}
	decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Stream.Token, "enc:"), passphrase)
	if err != nil {
		return fmt.Errorf("stream token: %w", err)
	}
	cfg.Stream.Token = decrypted
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value. Every failure wraps
// domain.ErrDecryption.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: invalid encrypted format", domain.ErrDecryption)
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: decode salt: %v", domain.ErrDecryption, err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", domain.ErrDecryption, err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}

	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// 0600 and 0644 pass; anything group/world writable does not.
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/biosearch/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .biosearch/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"api.listen",
		"api.log_file",
		"client.api_target",
		"search.threshold",
		"search.top_k",
		"search.audio_namespace",
		"search.video_namespace",
		"search.image_namespace",
		"search.frame_rate",
		"search.frame_interval",
		"search.sample_rate",
		"search.work_dir",
		"search.ffmpeg_path",
		"search.max_upload_size_mib",
		"vector_store.provider",
		"vector_store.target",
		"vector_store.index",
		"vector_store.api_key",
		"vector_store.dimensions",
		"blob.provider",
		"blob.bucket",
		"blob.region",
		"blob.endpoint",
		"blob.access_key_id",
		"blob.secret_access_key",
		"blob.base_url",
		"inference.provider",
		"inference.target",
		"inference.python",
		"inference.script",
		"inference.rate_limit",
		"inference.cache_url",
		"events.provider",
		"events.target",
		"events.topic",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .biosearch/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .biosearch/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	orString(&cfg.API.Listen, d.API.Listen)
	orString(&cfg.Client.APITarget, d.Client.APITarget)

	if cfg.Search.Threshold == 0 {
		cfg.Search.Threshold = d.Search.Threshold
	}
	orInt(&cfg.Search.TopK, d.Search.TopK)
	orString(&cfg.Search.AudioNamespace, d.Search.AudioNamespace)
	orString(&cfg.Search.VideoNamespace, d.Search.VideoNamespace)
	orString(&cfg.Search.ImageNamespace, d.Search.ImageNamespace)
	orInt(&cfg.Search.FrameRate, d.Search.FrameRate)
	orInt(&cfg.Search.FrameInterval, d.Search.FrameInterval)
	orInt(&cfg.Search.SampleRate, d.Search.SampleRate)
	orString(&cfg.Search.FFmpegPath, d.Search.FFmpegPath)
	orInt(&cfg.Search.MaxUploadSizeMiB, d.Search.MaxUploadSizeMiB)

	orString(&cfg.VectorStore.Provider, d.VectorStore.Provider)
	orString(&cfg.VectorStore.Index, d.VectorStore.Index)
	if cfg.VectorStore.Dimensions == 0 {
		cfg.VectorStore.Dimensions = d.VectorStore.Dimensions
	}

	orString(&cfg.Blob.Provider, d.Blob.Provider)
	orString(&cfg.Blob.Region, d.Blob.Region)

	orString(&cfg.Inference.Provider, d.Inference.Provider)
	orString(&cfg.Inference.Target, d.Inference.Target)
	orString(&cfg.Inference.Python, d.Inference.Python)

	orString(&cfg.Events.Provider, d.Events.Provider)
	orString(&cfg.Events.Topic, d.Events.Topic)
}

func orString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func orInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .biosearch/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named deployment
// preset. Supported presets: "local", "aws", "selfhosted".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
		cfg.VectorStore.Provider = "sqlite"
		cfg.VectorStore.Target = "biosearch.sqlite"
		cfg.Blob.Provider = "afs"
		cfg.Blob.BaseURL = "file:///tmp/biosearch/blobs"
		cfg.Inference.Provider = "worker"
		cfg.Inference.Script = "worker.py"
		return cfg, nil

	case "aws":
		cfg.VectorStore.Provider = "pinecone"
		cfg.Blob.Provider = "s3"
		cfg.Blob.Bucket = "biosearch-media"
		cfg.Inference.Provider = "http"
		return cfg, nil

	case "selfhosted":
		cfg.VectorStore.Provider = "qdrant"
		cfg.VectorStore.Target = "localhost:6334"
		cfg.Blob.Provider = "s3"
		cfg.Blob.Bucket = "biosearch-media"
		cfg.Blob.Endpoint = "http://localhost:9000"
		cfg.Inference.Provider = "http"
		cfg.Inference.Target = "http://localhost:9100"
		cfg.Inference.CacheURL = "redis://localhost:6379/0"
		cfg.Events.Provider = "nats"
		cfg.Events.Target = "nats://localhost:4222"
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: local, aws, selfhosted)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "aws", "selfhosted"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent biosearch configuration stored as
// config.toml in the .biosearch/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Search      SearchConfig      `toml:"search"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Blob        BlobConfig        `toml:"blob"`
	Inference   InferenceConfig   `toml:"inference"`
	Events      EventsConfig      `toml:"events"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// LogFile, when set, receives a JSON copy of the server log.
	LogFile string `toml:"log_file,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server (biosearch search, biosearch ingest). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// SearchConfig holds the knobs of the speaker and face search services.
type SearchConfig struct {
	Threshold        float64 `toml:"threshold,omitempty"`
	TopK             int     `toml:"top_k,omitempty"`
	AudioNamespace   string  `toml:"audio_namespace,omitempty"`
	VideoNamespace   string  `toml:"video_namespace,omitempty"`
	ImageNamespace   string  `toml:"image_namespace,omitempty"`
	FrameRate        int     `toml:"frame_rate,omitempty"`
	FrameInterval    int     `toml:"frame_interval,omitempty"`
	SampleRate       int     `toml:"sample_rate,omitempty"`
	WorkDir          string  `toml:"work_dir,omitempty"`
	FFmpegPath       string  `toml:"ffmpeg_path,omitempty"`
	MaxUploadSizeMiB int     `toml:"max_upload_size_mib,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Index      string `toml:"index,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// BlobConfig holds object storage settings for raw uploaded media.
type BlobConfig struct {
	Provider        string `toml:"provider,omitempty"`
	Bucket          string `toml:"bucket,omitempty"`
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	BaseURL         string `toml:"base_url,omitempty"`
}

// InferenceConfig holds settings for the face and speaker models.
type InferenceConfig struct {
	Provider  string  `toml:"provider,omitempty"`
	Target    string  `toml:"target,omitempty"`
	Python    string  `toml:"python,omitempty"`
	Script    string  `toml:"script,omitempty"`
	RateLimit float64 `toml:"rate_limit,omitempty"`
	CacheURL  string  `toml:"cache_url,omitempty"`
}

// EventsConfig holds ingest event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for %s: %q", name, v)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.log_file":      stringKey(func(c *Config) *string { return &c.API.LogFile }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"search.threshold":           floatKey("search.threshold", func(c *Config) *float64 { return &c.Search.Threshold }),
	"search.top_k":               intKey("search.top_k", func(c *Config) *int { return &c.Search.TopK }),
	"search.audio_namespace":     stringKey(func(c *Config) *string { return &c.Search.AudioNamespace }),
	"search.video_namespace":     stringKey(func(c *Config) *string { return &c.Search.VideoNamespace }),
	"search.image_namespace":     stringKey(func(c *Config) *string { return &c.Search.ImageNamespace }),
	"search.frame_rate":          intKey("search.frame_rate", func(c *Config) *int { return &c.Search.FrameRate }),
	"search.frame_interval":      intKey("search.frame_interval", func(c *Config) *int { return &c.Search.FrameInterval }),
	"search.sample_rate":         intKey("search.sample_rate", func(c *Config) *int { return &c.Search.SampleRate }),
	"search.work_dir":            stringKey(func(c *Config) *string { return &c.Search.WorkDir }),
	"search.ffmpeg_path":         stringKey(func(c *Config) *string { return &c.Search.FFmpegPath }),
	"search.max_upload_size_mib": intKey("search.max_upload_size_mib", func(c *Config) *int { return &c.Search.MaxUploadSizeMiB }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.index":    stringKey(func(c *Config) *string { return &c.VectorStore.Index }),
	"vector_store.api_key":  stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),
	"vector_store.dimensions": {
		get: func(c *Config) string {
			if c.VectorStore.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.VectorStore.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.dimensions: %w", err)
			}
			c.VectorStore.Dimensions = uint(n)
			return nil
		},
	},

	"blob.provider":          stringKey(func(c *Config) *string { return &c.Blob.Provider }),
	"blob.bucket":            stringKey(func(c *Config) *string { return &c.Blob.Bucket }),
	"blob.region":            stringKey(func(c *Config) *string { return &c.Blob.Region }),
	"blob.endpoint":          stringKey(func(c *Config) *string { return &c.Blob.Endpoint }),
	"blob.access_key_id":     stringKey(func(c *Config) *string { return &c.Blob.AccessKeyID }),
	"blob.secret_access_key": stringKey(func(c *Config) *string { return &c.Blob.SecretAccessKey }),
	"blob.base_url":          stringKey(func(c *Config) *string { return &c.Blob.BaseURL }),

	"inference.provider":   stringKey(func(c *Config) *string { return &c.Inference.Provider }),
	"inference.target":     stringKey(func(c *Config) *string { return &c.Inference.Target }),
	"inference.python":     stringKey(func(c *Config) *string { return &c.Inference.Python }),
	"inference.script":     stringKey(func(c *Config) *string { return &c.Inference.Script }),
	"inference.rate_limit": floatKey("inference.rate_limit", func(c *Config) *float64 { return &c.Inference.RateLimit }),
	"inference.cache_url":  stringKey(func(c *Config) *string { return &c.Inference.CacheURL }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.target":   stringKey(func(c *Config) *string { return &c.Events.Target }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

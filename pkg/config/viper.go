package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/biosearch/pkg/dotdir"
)

// EnvPrefix is the prefix of every environment variable viper consults.
const EnvPrefix = "BIOSEARCH"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the BIOSEARCH_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (BIOSEARCH_API_LISTEN, BIOSEARCH_BLOB_BUCKET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// WatchThreshold calls fn with the new search.threshold every time the
// config file backing v changes on disk. It is a no-op when v was not loaded
// from a file.
func WatchThreshold(v *viper.Viper, fn func(threshold float64)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(v.GetFloat64("search.threshold"))
	})
	v.WatchConfig()
}

// FromViper materializes a Config from the merged viper state.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			Listen:  v.GetString("api.listen"),
			LogFile: v.GetString("api.log_file"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		Search: SearchConfig{
			Threshold:        v.GetFloat64("search.threshold"),
			TopK:             v.GetInt("search.top_k"),
			AudioNamespace:   v.GetString("search.audio_namespace"),
			VideoNamespace:   v.GetString("search.video_namespace"),
			ImageNamespace:   v.GetString("search.image_namespace"),
			FrameRate:        v.GetInt("search.frame_rate"),
			FrameInterval:    v.GetInt("search.frame_interval"),
			SampleRate:       v.GetInt("search.sample_rate"),
			WorkDir:          v.GetString("search.work_dir"),
			FFmpegPath:       v.GetString("search.ffmpeg_path"),
			MaxUploadSizeMiB: v.GetInt("search.max_upload_size_mib"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Index:      v.GetString("vector_store.index"),
			APIKey:     v.GetString("vector_store.api_key"),
			Dimensions: v.GetUint("vector_store.dimensions"),
		},
		Blob: BlobConfig{
			Provider:        v.GetString("blob.provider"),
			Bucket:          v.GetString("blob.bucket"),
			Region:          v.GetString("blob.region"),
			Endpoint:        v.GetString("blob.endpoint"),
			AccessKeyID:     v.GetString("blob.access_key_id"),
			SecretAccessKey: v.GetString("blob.secret_access_key"),
			BaseURL:         v.GetString("blob.base_url"),
		},
		Inference: InferenceConfig{
			Provider:  v.GetString("inference.provider"),
			Target:    v.GetString("inference.target"),
			Python:    v.GetString("inference.python"),
			Script:    v.GetString("inference.script"),
			RateLimit: v.GetFloat64("inference.rate_limit"),
			CacheURL:  v.GetString("inference.cache_url"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Target:   v.GetString("events.target"),
			Topic:    v.GetString("events.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Every key is registered, even empty ones, so AutomaticEnv can see them.
	for key, info := range configKeys {
		v.SetDefault(key, info.get(d))
	}

	v.SetDefault("search.threshold", d.Search.Threshold)
	v.SetDefault("search.top_k", d.Search.TopK)
	v.SetDefault("search.frame_rate", d.Search.FrameRate)
	v.SetDefault("search.frame_interval", d.Search.FrameInterval)
	v.SetDefault("search.sample_rate", d.Search.SampleRate)
	v.SetDefault("search.max_upload_size_mib", d.Search.MaxUploadSizeMiB)
	v.SetDefault("vector_store.dimensions", d.VectorStore.Dimensions)
	v.SetDefault("inference.rate_limit", d.Inference.RateLimit)
}

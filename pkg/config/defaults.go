package config

const (
	defaultAPIListen       = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultThreshold      = 0.5
	defaultTopK           = 3
	defaultAudioNamespace = "processed-audio"
	defaultVideoNamespace = "preprocessed-videos"
	defaultImageNamespace = "preprocessed-images"
	defaultFrameRate      = 30
	defaultFrameInterval  = 15
	defaultSampleRate     = 16000
	defaultFFmpegPath     = "ffmpeg"
	defaultMaxUploadMiB   = 512

	defaultVectorProvider   = "sqlite"
	defaultVectorIndex      = "biosearch"
	defaultVectorDimensions = 512

	defaultBlobProvider = "nop"
	defaultBlobRegion   = "us-east-1"

	defaultInferenceProvider = "http"
	defaultInferenceTarget   = "http://localhost:9000"
	defaultInferencePython   = "python3"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "biosearch.ingest"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Search: SearchConfig{
			Threshold:        defaultThreshold,
			TopK:             defaultTopK,
			AudioNamespace:   defaultAudioNamespace,
			VideoNamespace:   defaultVideoNamespace,
			ImageNamespace:   defaultImageNamespace,
			FrameRate:        defaultFrameRate,
			FrameInterval:    defaultFrameInterval,
			SampleRate:       defaultSampleRate,
			FFmpegPath:       defaultFFmpegPath,
			MaxUploadSizeMiB: defaultMaxUploadMiB,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Index:      defaultVectorIndex,
			Dimensions: defaultVectorDimensions,
		},
		Blob: BlobConfig{
			Provider: defaultBlobProvider,
			Region:   defaultBlobRegion,
		},
		Inference: InferenceConfig{
			Provider: defaultInferenceProvider,
			Target:   defaultInferenceTarget,
			Python:   defaultInferencePython,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}

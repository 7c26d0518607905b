package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on both "biosearch search" and "biosearch ingest").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagLogFile         = "log-file"
	FlagAPITarget       = "api-target"
	FlagThreshold       = "threshold"
	FlagTopK            = "top-k"
	FlagWorkDir         = "work-dir"
	FlagFFmpeg          = "ffmpeg"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagVectorIndex     = "vector-index"
	FlagBlobProvider    = "blob-provider"
	FlagBlobBucket      = "blob-bucket"
	FlagInferenceProv   = "inference-provider"
	FlagInferenceTgt    = "inference-target"
	FlagEventsProvider  = "events-provider"
	FlagEventsTarget    = "events-target"
)

// ServeFlags are the flags of "biosearch serve".
var ServeFlags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagLogFile:         {Name: "log-file", ViperKey: "api.log_file", Description: "Also write JSON logs to this file"},
	FlagThreshold:       {Name: "threshold", ViperKey: "search.threshold", Description: "Minimum similarity score for a match"},
	FlagWorkDir:         {Name: "work-dir", ViperKey: "search.work_dir", Description: "Directory for per-request temporary files"},
	FlagFFmpeg:          {Name: "ffmpeg", ViperKey: "search.ffmpeg_path", Description: "Path to the ffmpeg binary"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store (pinecone, qdrant, chroma, sqlite, pgvector)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store URL, address or path"},
	FlagVectorIndex:     {Name: "vector-index", ViperKey: "vector_store.index", Description: "Vector index or collection name"},
	FlagBlobProvider:    {Name: "blob-provider", ViperKey: "blob.provider", Description: "Object storage (s3, afs, nop)"},
	FlagBlobBucket:      {Name: "blob-bucket", ViperKey: "blob.bucket", Description: "Object storage bucket"},
	FlagInferenceProv:   {Name: "inference-provider", ViperKey: "inference.provider", Description: "Model backend (http, worker)"},
	FlagInferenceTgt:    {Name: "inference-target", ViperKey: "inference.target", Description: "Model server URL"},
	FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Ingest event publisher (nop, kafka, nats)"},
	FlagEventsTarget:    {Name: "events-target", ViperKey: "events.target", Description: "Event broker address"},
}

// ClientFlags are the flags shared by the client commands.
var ClientFlags = FlagSet{
	FlagAPITarget: {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "biosearch API server URL"},
	FlagTopK:      {Name: "top-k", Shorthand: "k", ViperKey: "search.top_k", Description: "Number of matches to request"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *float64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultFloat(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}

func defaultFloat(viperKey string) float64 {
	v := viper.New()
	setViperDefaults(v)
	return v.GetFloat64(viperKey)
}

// Package media owns the local side of media handling: type detection, the
// per-request workspace, and the ffmpeg conversions that feed the models.
package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the family of a media type.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUnknown Kind = ""
)

var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/x-wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// TypeByName guesses the MIME type of a file from its name. It returns ""
// when the extension is unknown.
func TypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// KindOf classifies a file by its guessed MIME type.
func KindOf(name string) Kind {
	t := TypeByName(name)
	switch {
	case strings.HasPrefix(t, "audio/"):
		return KindAudio
	case strings.HasPrefix(t, "image/"):
		return KindImage
	case strings.HasPrefix(t, "video/"):
		return KindVideo
	default:
		return KindUnknown
	}
}

// Ext is the extension of name without the dot, case preserved.
func Ext(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

// Stem is the base name up to its first dot, so "clip.final.mp3" is "clip".
func Stem(name string) string {
	base := filepath.Base(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

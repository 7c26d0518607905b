package search

import "github.com/papercomputeco/biosearch/pkg/vector"

// SpeakerMatch is a stored voice similar to the query.
type SpeakerMatch struct {
	Speaker  string  `json:"speaker"`
	FileName string  `json:"file_name"`
	Score    float32 `json:"score"`
	Link     string  `json:"link"`
}

// IngestedAudio describes one stored audio file.
type IngestedAudio struct {
	FileName string `json:"file_name"`
	Link     string `json:"link"`
	Speaker  string `json:"speaker"`
}

// FaceMatch is a stored face similar to the query.
type FaceMatch struct {
	ID       string          `json:"id"`
	Score    float32         `json:"score"`
	Metadata vector.Metadata `json:"metadata"`
}

// FaceResults holds the matches from both face namespaces.
type FaceResults struct {
	VideoMatches []FaceMatch `json:"video_matches"`
	ImageMatches []FaceMatch `json:"image_matches"`
}

// Empty reports whether neither namespace matched.
func (r *FaceResults) Empty() bool {
	return len(r.VideoMatches) == 0 && len(r.ImageMatches) == 0
}

// FaceIngestResult totals a face ingest request.
type FaceIngestResult struct {
	IngestedFiles []string `json:"ingested_files"`
	Links         []string `json:"s3_links"`
	TotalUpserts  int      `json:"total_upserts"`
}

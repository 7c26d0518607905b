package httpmodel

import "github.com/papercomputeco/biosearch/pkg/faces"

// speakerRequest carries the WAV bytes, base64 encoded on the wire.
type speakerRequest struct {
	Audio []byte `json:"audio"`
}

type imageRequest struct {
	Image []byte `json:"image"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type detectResponse struct {
	Faces []faces.Box `json:"faces"`
}

type errorResponse struct {
	Error string `json:"error"`
}

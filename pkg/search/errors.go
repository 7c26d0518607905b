package search

import "errors"

var (
	// ErrInvalidType is returned when an upload is not of an accepted media type.
	ErrInvalidType = errors.New("invalid file type")

	// ErrMissingInput is returned when a request lacks files or fields.
	ErrMissingInput = errors.New("missing input")

	// ErrNoFace is returned when a face search image contains no face.
	ErrNoFace = errors.New("no face detected in the image")
)

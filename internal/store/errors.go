package store

import "errors"

var (
	// ErrUnsupportedScheme is returned by Open for a URL whose scheme has no backend.
	ErrUnsupportedScheme = errors.New("unsupported connection scheme")
	// ErrBucketNotFound is returned when the bolt bucket of a collection is missing.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrCorruptDocument is returned when a stored document cannot be decoded.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrUnsupportedBSON is returned when a Mongo value has no JSON equivalent.
	ErrUnsupportedBSON = errors.New("unsupported BSON value")
)

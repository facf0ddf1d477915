// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize is the largest document Decode accepts (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

type (
	decodeOptions struct {
		maxFileSize int64
		concrete    bool
		filename    string
		schema      string
		schemaPath  string
	}

	// Option configures Decode.
	Option func(*decodeOptions)
)

func defaultOptions() decodeOptions {
	return decodeOptions{
		maxFileSize: DefaultMaxFileSize,
		filename:    "<input>",
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(o *decodeOptions) {
		o.maxFileSize = size
	}
}

// WithConcrete requires every value to be concrete after unification.
// Configuration files leave it off since all of their fields are optional.
func WithConcrete(concrete bool) Option {
	return func(o *decodeOptions) {
		o.concrete = concrete
	}
}

// WithFilename sets the name reported in error messages.
func WithFilename(name string) Option {
	return func(o *decodeOptions) {
		if name != "" {
			o.filename = name
		}
	}
}

// WithSchema unifies the document with the definition at path (for example
// "#Config") inside schema before validating and decoding.
func WithSchema(schema, path string) Option {
	return func(o *decodeOptions) {
		o.schema = schema
		o.schemaPath = path
	}
}

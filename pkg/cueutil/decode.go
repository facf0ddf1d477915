// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode compiles data, optionally unifies it with a schema, validates the
// result and decodes it into a T.
func Decode[T any](data []byte, opts ...Option) (T, error) {
	var out T

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return out, err
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(o.filename))
	if value.Err() != nil {
		return out, FormatError(value.Err(), o.filename)
	}

	if o.schema != "" {
		schema := ctx.CompileString(o.schema)
		if schema.Err() != nil {
			return out, fmt.Errorf("internal error: compile schema: %w", schema.Err())
		}
		root := schema.LookupPath(cue.ParsePath(o.schemaPath))
		if root.Err() != nil {
			return out, fmt.Errorf("internal error: schema definition %s not found: %w", o.schemaPath, root.Err())
		}
		value = root.Unify(value)
	}

	if err := value.Validate(cue.Concrete(o.concrete)); err != nil {
		return out, FormatError(err, o.filename)
	}
	if err := value.Decode(&out); err != nil {
		return out, FormatError(err, o.filename)
	}
	return out, nil
}

// CheckFileSize returns an error if data is larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if maxSize > 0 && int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}

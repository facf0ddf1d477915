// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
)

// ErrInconclusive is returned by a tier that cannot answer a request.
var ErrInconclusive = errors.New("inconclusive")

type (
	// Request is one resolution request.
	Request struct {
		Specifier string
		// FromDir is the directory of the importing module, used to find the
		// workspace manifest and node_modules.
		FromDir string
	}

	// Tier is one step of the resolution chain.
	Tier struct {
		Name    string
		Resolve func(ctx context.Context, req Request) (cache.Resolution, error)
	}

	// UnresolvedError is a terminal failure for one specifier.
	UnresolvedError struct {
		Specifier string
		Err       error
	}
)

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("could not resolve %q: %v", e.Specifier, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnresolvedError) Unwrap() error { return e.Err }

// FirstOf returns a tier that tries tiers in order and returns the first
// conclusive answer. Any error other than ErrInconclusive stops the chain.
func FirstOf(tiers ...Tier) Tier {
	return Tier{
		Name: "chain",
		Resolve: func(ctx context.Context, req Request) (cache.Resolution, error) {
			for _, t := range tiers {
				res, err := t.Resolve(ctx, req)
				if errors.Is(err, ErrInconclusive) {
					continue
				}
				if err != nil {
					return cache.Resolution{}, err
				}
				if res.Tier == "" {
					res.Tier = t.Name
				}
				return res, nil
			}
			return cache.Resolution{}, ErrInconclusive
		},
	}
}

// inconclusive wraps err so that it reads as ErrInconclusive while still
// carrying the cause for logs.
func inconclusive(err error) error {
	if err == nil {
		return ErrInconclusive
	}
	return fmt.Errorf("%w: %w", ErrInconclusive, err)
}

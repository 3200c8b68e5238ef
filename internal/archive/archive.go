// Package archive stores finished match results.
package archive

import (
	"context"
	"errors"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

type Recorder interface {
	Record(ctx context.Context, res arenadto.MatchResult) error
}

// Reader lists the most recent results, newest first.
type Reader interface {
	Recent(ctx context.Context, n int) ([]arenadto.MatchResult, error)
}

type Nop struct{}

func (Nop) Record(context.Context, arenadto.MatchResult) error { return nil }

func (Nop) Recent(context.Context, int) ([]arenadto.MatchResult, error) { return nil, nil }

// Multi records into every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, res arenadto.MatchResult) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withPGN fills the PGN field when the caller left it empty.
func withPGN(res arenadto.MatchResult) arenadto.MatchResult {
	if res.PGN == "" {
		res.PGN = BuildPGN(res)
	}
	return res
}

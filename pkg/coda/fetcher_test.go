package coda

import (
	"context"
	"iter"
)

type nopFetcher struct{}

func (nopFetcher) Records(context.Context, string) iter.Seq2[map[string]any, error] {
	return func(func(map[string]any, error) bool) {}
}

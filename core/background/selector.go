package background

import (
	"context"
	"errors"

	"storyreel/logger"
	"storyreel/model"
)

// Selector picks from the local library and, when a fetcher is configured,
// downloads a clip for categories the library cannot serve.
type Selector struct {
	library *Library
	fetcher Fetcher
}

// NewSelector creates a Selector. fetcher may be nil.
func NewSelector(library *Library, fetcher Fetcher) *Selector {
	return &Selector{library: library, fetcher: fetcher}
}

// Library returns the underlying clip library.
func (s *Selector) Library() *Library {
	return s.library
}

// Select returns a background clip for category.
func (s *Selector) Select(ctx context.Context, category string) (model.BackgroundClip, error) {
	clip, err := s.library.Select(category)
	if err == nil || s.fetcher == nil || !errors.Is(err, model.ErrResourceMissing) {
		return clip, err
	}

	logger.Warn("No local background clip, fetching one",
		logger.String("category", category),
		logger.ErrorField(err))

	path, ferr := s.fetcher.Fetch(ctx, category, s.library.CategoryDir(category))
	if ferr != nil {
		return model.BackgroundClip{}, errors.Join(err, ferr)
	}
	return model.BackgroundClip{Path: path, Category: category}, nil
}

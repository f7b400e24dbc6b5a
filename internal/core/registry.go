package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedFileType is returned when no extractor is registered for a file type.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Extractor reads one catalog file into product records. Re-reading the same
// file yields the same records in the same order.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]ProductRecord, error)
}

var (
	extractors   = make(map[FileType]Extractor)
	extractorsMu sync.RWMutex
)

// RegisterExtractor makes e the extractor for ft.
// Panics if ft is already registered.
func RegisterExtractor(ft FileType, e Extractor) {
	extractorsMu.Lock()
	defer extractorsMu.Unlock()

	if _, exists := extractors[ft]; exists {
		panic(fmt.Sprintf("extractor already registered: %s", ft))
	}
	extractors[ft] = e
}

// ExtractorFor returns the extractor registered for ft.
func ExtractorFor(ft FileType) (Extractor, error) {
	extractorsMu.RLock()
	defer extractorsMu.RUnlock()

	e, ok := extractors[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
	}
	return e, nil
}

// FileTypes returns the registered file types, sorted.
func FileTypes() []FileType {
	extractorsMu.RLock()
	defer extractorsMu.RUnlock()

	types := make([]FileType, 0, len(extractors))
	for ft := range extractors {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

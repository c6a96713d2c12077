// Package sources implements the per-system collaborators queried by the
// aggregator. Each source pulls raw rows from a RecordStore, maps them to
// canonical entities and applies the request filter.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/models"
)

var (
	ErrSourceAccess = errors.New("source access failed")
	ErrMapping      = errors.New("source mapping failed")
)

// Source answers "give me normalized entities matching this filter".
type Source interface {
	System() models.SystemType
	FetchNormalized(ctx context.Context, filter models.FilterSpec) (*models.EntityBundle, error)
}

// SourceError is the typed failure of a source. Kind is ErrSourceAccess or ErrMapping.
type SourceError struct {
	System models.SystemType
	Kind   error
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.System, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StandardError converts the failure for workflow error reporting.
func (e *SourceError) StandardError() *apperrors.StandardError {
	if errors.Is(e.Kind, ErrMapping) {
		return apperrors.NewMappingFailedError(string(e.System), e.Err)
	}
	return apperrors.NewSourceAccessFailedError(string(e.System), e.Err)
}

func accessError(system models.SystemType, err error) error {
	return &SourceError{System: system, Kind: ErrSourceAccess, Err: err}
}

func mappingError(system models.SystemType, err error) error {
	return &SourceError{System: system, Kind: ErrMapping, Err: err}
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// SystemSource is the store-backed Source of one system.
type SystemSource struct {
	system models.SystemType
	store  RecordStore
	mapper Mapper
	cache  *Cache
	loc    *time.Location
	logger Logger
}

func NewSystemSource(system models.SystemType, store RecordStore, mapper Mapper, cache *Cache, loc *time.Location, log Logger) *SystemSource {
	if loc == nil {
		loc = time.Local
	}
	return &SystemSource{
		system: system,
		store:  store,
		mapper: mapper,
		cache:  cache,
		loc:    loc,
		logger: log,
	}
}

func (s *SystemSource) System() models.SystemType {
	return s.system
}

func (s *SystemSource) FetchNormalized(ctx context.Context, filter models.FilterSpec) (*models.EntityBundle, error) {
	bundle, err := s.cache.GetOrLoad(ctx, s.system, s.load)
	if err != nil {
		return nil, err
	}
	return ApplyFilter(bundle, filter, s.loc), nil
}

// load pulls all four raw tables and maps them.
func (s *SystemSource) load(ctx context.Context) (*models.EntityBundle, error) {
	raw := make(RawSet, len(models.AllEntityTypes))
	for _, entity := range models.AllEntityTypes {
		records, err := s.store.FetchRecords(ctx, s.system, entity)
		if err != nil {
			s.logger.Error("Raw record pull failed", map[string]interface{}{
				"system": string(s.system),
				"entity": string(entity),
				"error":  err.Error(),
			})
			return nil, accessError(s.system, err)
		}
		raw[entity] = records
	}

	bundle, err := s.mapper(raw, s.loc)
	if err != nil {
		return nil, mappingError(s.system, err)
	}

	s.logger.Info("Raw records normalized", map[string]interface{}{
		"system":        string(s.system),
		"organizations": len(bundle.Organizations),
		"persons":       len(bundle.Persons),
		"customers":     len(bundle.Customers),
		"transactions":  len(bundle.Transactions),
	})
	return bundle, nil
}

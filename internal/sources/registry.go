// internal/sources/registry.go
package sources

import (
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"ucap-workers/internal/common/config"
	"ucap-workers/internal/models"
)

// mappers holds the canonical mapping of every supported system.
var mappers = map[models.SystemType]Mapper{
	models.SystemERP: MapERP,
	models.SystemHR:  MapHR,
	models.SystemFIN: MapFIN,
}

// MapperFor returns the mapper of a system.
func MapperFor(system models.SystemType) (Mapper, bool) {
	m, ok := mappers[system]
	return m, ok
}

// Stores are the raw backends available to the registry. Either may be nil
// when the backend is not configured. Elasticsearch-backed systems each get
// their own store so index prefixes can differ per system.
type Stores struct {
	Postgres      RecordStore
	Elasticsearch *elasticsearch.Client
}

// Registry resolves system identifiers to Source collaborators.
type Registry struct {
	sources map[models.SystemType]Source
}

func NewRegistry(list ...Source) *Registry {
	r := &Registry{sources: make(map[models.SystemType]Source, len(list))}
	for _, s := range list {
		r.sources[s.System()] = s
	}
	return r
}

// NewRegistryFromConfig builds one SystemSource per enabled system.
func NewRegistryFromConfig(cfg *config.Config, stores Stores, cache *Cache, log Logger) (*Registry, error) {
	loc := cfg.Location()
	r := &Registry{sources: make(map[models.SystemType]Source, len(models.AllSystems))}

	for _, system := range models.AllSystems {
		sc, ok := cfg.Sources[string(system)]
		if !ok || !sc.Enabled {
			log.Info("Source disabled", map[string]interface{}{"system": string(system)})
			continue
		}

		var store RecordStore
		switch sc.Backend {
		case config.BackendElasticsearch:
			if stores.Elasticsearch != nil {
				store = NewElasticsearchStore(stores.Elasticsearch, sc.IndexPrefix)
			}
		default:
			store = stores.Postgres
		}
		if store == nil {
			return nil, fmt.Errorf("source %s: backend %q is not available", system, sc.Backend)
		}

		r.sources[system] = NewSystemSource(system, store, mappers[system], cache, loc, log)
	}

	return r, nil
}

// CacheTTLs extracts per-system cache lifetimes from the config.
func CacheTTLs(cfg *config.Config) map[models.SystemType]time.Duration {
	out := make(map[models.SystemType]time.Duration, len(cfg.Sources))
	for name, sc := range cfg.Sources {
		if system, ok := models.ParseSystem(name); ok {
			out[system] = time.Duration(sc.CacheTTL) * time.Second
		}
	}
	return out
}

// Resolve returns the registered sources of systems in order, skipping
// systems without a source.
func (r *Registry) Resolve(systems []models.SystemType) []Source {
	out := make([]Source, 0, len(systems))
	for _, s := range systems {
		if src, ok := r.sources[s]; ok {
			out = append(out, src)
		}
	}
	return out
}

// Systems lists the registered systems in canonical order.
func (r *Registry) Systems() []models.SystemType {
	out := make([]models.SystemType, 0, len(r.sources))
	for _, s := range models.AllSystems {
		if _, ok := r.sources[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

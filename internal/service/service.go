// Package service is the embeddable facade over the document store:
// one Store wires the document model, version graph, branches, merge
// engine, locks, tags, comments, and the audit history behind a single
// API. Caller identity is an explicit argument on every mutating call.
package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/cas"
	"github.com/nholden/verso/internal/comment"
	"github.com/nholden/verso/internal/config"
	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/lock"
	"github.com/nholden/verso/internal/logging"
	"github.com/nholden/verso/internal/merge"
	"github.com/nholden/verso/internal/metrics"
	"github.com/nholden/verso/internal/store"
	"github.com/nholden/verso/internal/tag"
	"github.com/nholden/verso/internal/vgraph"
)

// Store is the assembled document store.
type Store struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
	schema  *document.Schema

	db       *store.DB // nil for memory stores
	docs     DocumentStore
	heads    branch.Store
	branches *branch.Manager
	versions *vgraph.Store
	engine   *merge.Engine
	locks    *lock.Service
	tags     *tag.Service
	comments *comment.Service
	history  history.Log

	defaultLockTTL time.Duration
}

// Options tune an assembled store. The zero value is usable.
type Options struct {
	Logger          *zerolog.Logger
	Metrics         *metrics.Metrics
	Schema          *document.Schema
	MaxLineageDepth int
	DefaultLockTTL  time.Duration
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return logging.Nop()
}

func (o Options) metricSet() *metrics.Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.Nop()
}

func (o Options) schemaOrDefault() *document.Schema {
	if o.Schema != nil {
		return o.Schema
	}
	return document.DefaultSchema()
}

// NewMemory assembles a store on the in-memory backends. Used by tests
// and embedders that do not need persistence.
func NewMemory(opts Options) *Store {
	log := history.NewMemoryLog()
	heads := branch.NewMemoryStore(log)
	schema := opts.schemaOrDefault()
	versions := vgraph.New(cas.NewMemoryCAS(), vgraph.NewMemoryIndex(), heads, schema)
	if opts.MaxLineageDepth > 0 {
		versions.SetMaxLineageDepth(opts.MaxLineageDepth)
	}
	engine := merge.NewEngine(versions, heads, merge.NewMemoryRequestStore())
	if opts.MaxLineageDepth > 0 {
		engine.SetMaxDepth(opts.MaxLineageDepth)
	}
	return &Store{
		log:            opts.logger(),
		metrics:        opts.metricSet(),
		schema:         schema,
		docs:           NewMemoryDocuments(),
		heads:          heads,
		branches:       branch.NewManager(heads),
		versions:       versions,
		engine:         engine,
		locks:          lock.NewService(lock.NewMemoryStore(), log),
		tags:           tag.NewService(tag.NewMemoryStore(log)),
		comments:       comment.NewService(comment.NewMemoryStore(), log),
		history:        log,
		defaultLockTTL: opts.DefaultLockTTL,
	}
}

// Open assembles a store on a bbolt database at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	blobs, err := cas.NewBoltCAS(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log := history.NewBoltLog(db)
	heads := branch.NewBoltStore(db)
	schema := opts.schemaOrDefault()
	versions := vgraph.New(blobs, vgraph.NewBoltIndex(db), heads, schema)
	if opts.MaxLineageDepth > 0 {
		versions.SetMaxLineageDepth(opts.MaxLineageDepth)
	}
	engine := merge.NewEngine(versions, heads, merge.NewBoltRequestStore(db))
	if opts.MaxLineageDepth > 0 {
		engine.SetMaxDepth(opts.MaxLineageDepth)
	}
	return &Store{
		log:            opts.logger(),
		metrics:        opts.metricSet(),
		schema:         schema,
		db:             db,
		docs:           NewBoltDocuments(db),
		heads:          heads,
		branches:       branch.NewManager(heads),
		versions:       versions,
		engine:         engine,
		locks:          lock.NewService(lock.NewBoltStore(db), log),
		tags:           tag.NewService(tag.NewBoltStore(db)),
		comments:       comment.NewService(comment.NewBoltStore(db), log),
		history:        log,
		defaultLockTTL: opts.DefaultLockTTL,
	}, nil
}

// OpenConfig assembles a bbolt-backed store from a loaded config file.
func OpenConfig(cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	var schema *document.Schema
	if len(cfg.Store.IdentityKeys) > 0 {
		schema = document.NewSchema(cfg.Store.IdentityKeys)
	}
	return Open(cfg.Store.Path, Options{
		Logger:          &logger,
		Metrics:         metrics.New(prometheus.DefaultRegisterer),
		Schema:          schema,
		MaxLineageDepth: cfg.Store.MaxLineageDepth,
		DefaultLockTTL:  cfg.Store.DefaultLockTTL,
	})
}

// Close releases the underlying database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Schema returns the identity-key schema of the store.
func (s *Store) Schema() *document.Schema { return s.schema }

// observe records one finished operation to the log and metrics. Used
// via defer with a named error return.
func (s *Store) observe(op string, start time.Time, err *error) {
	elapsed := time.Since(start)
	status := "ok"
	if *err != nil {
		status = "error"
		if errors.Is(*err, domain.ErrConcurrentModification) {
			s.metrics.HeadConflictsTotal.Inc()
		}
		s.log.Warn().
			Str("operation", op).
			Dur("duration", elapsed).
			Err(*err).
			Msg("operation failed")
	} else {
		s.log.Debug().
			Str("operation", op).
			Dur("duration", elapsed).
			Msg("operation completed")
	}
	s.metrics.RecordOperation(op, status, elapsed)
}

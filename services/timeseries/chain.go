// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package timeseries implements the chain-structured store for economic
// metric history.
//
// Each metric owns one chronological chain of immutable MetricValue records
// linked HEAD -> (NEXT)* -> TAIL. HEAD and TAIL give O(1) access to the
// earliest and latest observations; NEXT gives cheap ordered traversal for
// trend and range queries without a secondary date index.
//
// Storage layout (BadgerDB):
//
//	meta/<metric>          chain directory: head/tail ids, boundary dates, count
//	val/<metric>/<id>      immutable observation record (date, value)
//	next/<metric>/<id>     successor pointer
//
// A value record is never rewritten once created; corrections arrive as
// superseding appends. Interior insertion rewrites only the affected pair of
// next/ pointers plus meta/, inside a single Badger transaction, so readers
// never observe a half-spliced chain.
//
// Concurrency: appends to the same chain are serialized by a per-metric
// mutex. Appends to different chains are fully independent. Reads run in
// Badger read transactions and are snapshot-consistent with the last
// committed append.
package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atlasre/assetgraph/pkg/validation"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrDuplicateDate is returned when an append carries a date already
	// present in the chain. The caller decides whether to skip or supersede;
	// the store never overwrites in place.
	ErrDuplicateDate = errors.New("chain already holds a value for this date")

	// ErrCycleDetected is returned by IntegrityCheck when forward traversal
	// exceeds the recorded node count for the chain.
	ErrCycleDetected = errors.New("chain traversal exceeded node count, cycle suspected")

	// ErrUnknownMetric is returned when an operation references a metric
	// with no chain.
	ErrUnknownMetric = errors.New("no chain exists for this metric")

	// errStopIteration signals early termination of a lazy range scan.
	errStopIteration = errors.New("stop iteration")
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

var (
	appendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgraph",
		Subsystem: "chain",
		Name:      "appends_total",
		Help:      "Chain mutations by landing position.",
	}, []string{"position"})

	appendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgraph",
		Subsystem: "chain",
		Name:      "append_errors_total",
		Help:      "Rejected chain mutations by reason.",
	}, []string{"reason"})
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Metric identifies a metric chain and carries its descriptive attributes.
// Name must be unique within Category. Scope is "National" or a state name.
type Metric struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Scope    string `json:"scope"`
	Units    string `json:"units"`
}

// MetricValue is one immutable observation in a chain.
type MetricValue struct {
	ID    string    `json:"id"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// chainMeta is the persisted chain directory entry.
type chainMeta struct {
	Metric
	Head     string    `json:"head"`
	Tail     string    `json:"tail"`
	HeadDate time.Time `json:"head_date"`
	TailDate time.Time `json:"tail_date"`
	Count    int       `json:"count"`
}

// Position describes where an appended value landed in its chain.
type Position string

const (
	// PositionFirst is the first value of a brand-new chain.
	PositionFirst Position = "first"
	// PositionTail extended the chain at the end (O(1) fast path).
	PositionTail Position = "tail"
	// PositionHead prepended before the current earliest value.
	PositionHead Position = "head"
	// PositionInterior spliced between two existing values.
	PositionInterior Position = "interior"
)

// AppendResult reports the outcome of a successful Append.
//
// ScanSteps counts the nodes visited while locating an interior insertion
// point. Tail appends, head prepends, and first inserts never scan, so
// ScanSteps is 0 for those positions; tests rely on this to pin the O(1)
// fast path.
type AppendResult struct {
	Node      MetricValue
	Position  Position
	ScanSteps int
}

// Report is the result of an integrity check over one chain.
type Report struct {
	Metric   string
	Nodes    int
	HeadDate time.Time
	TailDate time.Time
	Intact   bool
	Problems []string
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store is the chain-structured timeseries store.
type Store struct {
	db      *badger.DB
	closeFn func() error
	logger  *slog.Logger

	// locks serializes appends per metric chain. Reads never take it.
	locks sync.Map // metric name -> *sync.Mutex
}

// Open opens (or creates) a chain store with the given configuration.
func Open(cfg Config) (*Store, error) {
	db, closeFn, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, closeFn: closeFn, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

func metaKey(metric string) []byte {
	return []byte("meta/" + metric)
}

func valKey(metric, id string) []byte {
	return []byte("val/" + metric + "/" + id)
}

func nextKey(metric, id string) []byte {
	return []byte("next/" + metric + "/" + id)
}

// Day truncates a timestamp to calendar-day granularity in UTC. All chain
// dates are stored at this granularity.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Store) chainLock(metric string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(metric, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// Append inserts one observation into the metric's chain, creating the
// MetricType on first sighting.
//
// Dates later than the current TAIL take the O(1) fast path: one new value
// record, one NEXT pointer, TAIL advanced. Dates earlier than HEAD prepend.
// Dates strictly between two existing observations splice in via a linear
// scan from HEAD (chains are historically bounded, so the scan is cheap and
// rare). A date already present returns ErrDuplicateDate and leaves the
// chain untouched.
func (s *Store) Append(ctx context.Context, m Metric, date time.Time, value float64) (AppendResult, error) {
	if err := validation.ValidateMetricName(m.Name); err != nil {
		return AppendResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}
	date = Day(date)

	mu := s.chainLock(m.Name)
	mu.Lock()
	defer mu.Unlock()

	var res AppendResult
	err := s.db.Update(func(txn *badger.Txn) error {
		meta, found, err := readMeta(txn, m.Name)
		if err != nil {
			return err
		}
		if !found {
			meta = chainMeta{Metric: m}
		}

		node := MetricValue{ID: uuid.NewString(), Date: date, Value: value}

		switch {
		case meta.Count == 0:
			meta.Head, meta.Tail = node.ID, node.ID
			meta.HeadDate, meta.TailDate = date, date
			res = AppendResult{Node: node, Position: PositionFirst}

		case date.After(meta.TailDate):
			if err := writeNext(txn, m.Name, meta.Tail, node.ID); err != nil {
				return err
			}
			meta.Tail = node.ID
			meta.TailDate = date
			res = AppendResult{Node: node, Position: PositionTail}

		case date.Equal(meta.TailDate) || date.Equal(meta.HeadDate):
			return ErrDuplicateDate

		case date.Before(meta.HeadDate):
			if err := writeNext(txn, m.Name, node.ID, meta.Head); err != nil {
				return err
			}
			meta.Head = node.ID
			meta.HeadDate = date
			res = AppendResult{Node: node, Position: PositionHead}

		default:
			steps, predID, succID, err := s.locateSplice(ctx, txn, meta, date)
			if err != nil {
				return err
			}
			// Splice: the predecessor's pointer moves to the new node,
			// the new node points at the old successor. Both writes
			// commit atomically with the meta update.
			if err := writeNext(txn, m.Name, predID, node.ID); err != nil {
				return err
			}
			if err := writeNext(txn, m.Name, node.ID, succID); err != nil {
				return err
			}
			res = AppendResult{Node: node, Position: PositionInterior, ScanSteps: steps}
		}

		meta.Count++
		if err := writeValue(txn, m.Name, node); err != nil {
			return err
		}
		return writeMeta(txn, meta)
	})
	if err != nil {
		reason := "store"
		if errors.Is(err, ErrDuplicateDate) {
			reason = "duplicate_date"
		}
		appendErrorsTotal.WithLabelValues(reason).Inc()
		return AppendResult{}, err
	}

	appendsTotal.WithLabelValues(string(res.Position)).Inc()
	return res, nil
}

// locateSplice walks the chain from HEAD to find the predecessor of date.
// Returns the visited node count, predecessor id, and successor id.
func (s *Store) locateSplice(ctx context.Context, txn *badger.Txn, meta chainMeta, date time.Time) (int, string, string, error) {
	steps := 0
	currID := meta.Head
	for {
		if steps > meta.Count {
			return steps, "", "", ErrCycleDetected
		}
		if steps%64 == 0 {
			if err := ctx.Err(); err != nil {
				return steps, "", "", err
			}
		}
		succID, hasNext, err := readNext(txn, meta.Name, currID)
		if err != nil {
			return steps, "", "", err
		}
		if !hasNext {
			// Caller already handled the after-TAIL case; reaching the
			// end here means the meta and chain disagree.
			return steps, "", "", fmt.Errorf("chain for %q ended before insertion point", meta.Name)
		}
		succ, err := readValue(txn, meta.Name, succID)
		if err != nil {
			return steps, "", "", err
		}
		steps++
		if succ.Date.Equal(date) {
			return steps, "", "", ErrDuplicateDate
		}
		if succ.Date.After(date) {
			return steps, currID, succID, nil
		}
		currID = succID
	}
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Latest returns the most recent observation for the metric, via TAIL.
// Returns (nil, nil) when no chain exists.
func (s *Store) Latest(ctx context.Context, metric string) (*MetricValue, error) {
	return s.boundary(ctx, metric, func(m chainMeta) string { return m.Tail })
}

// Earliest returns the oldest observation for the metric, via HEAD.
// Returns (nil, nil) when no chain exists.
func (s *Store) Earliest(ctx context.Context, metric string) (*MetricValue, error) {
	return s.boundary(ctx, metric, func(m chainMeta) string { return m.Head })
}

func (s *Store) boundary(ctx context.Context, metric string, pick func(chainMeta) string) (*MetricValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *MetricValue
	err := s.db.View(func(txn *badger.Txn) error {
		meta, found, err := readMeta(txn, metric)
		if err != nil {
			return err
		}
		if !found || meta.Count == 0 {
			return nil
		}
		v, err := readValue(txn, metric, pick(meta))
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// Describe returns the metric attributes and chain bounds, or ErrUnknownMetric.
func (s *Store) Describe(ctx context.Context, metric string) (Metric, int, error) {
	if err := ctx.Err(); err != nil {
		return Metric{}, 0, err
	}
	var m Metric
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		meta, found, err := readMeta(txn, metric)
		if err != nil {
			return err
		}
		if !found {
			return ErrUnknownMetric
		}
		m, n = meta.Metric, meta.Count
		return nil
	})
	return m, n, err
}

// Metrics lists the names of all chains in the store, in key order.
func (s *Store) Metrics(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("meta/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), "meta/"))
		}
		return nil
	})
	return names, err
}

// Range returns a lazy, finite sequence of observations with
// from <= date <= to, in chronological order. Each invocation of the
// returned sequence re-scans from HEAD inside a fresh read transaction;
// there is no shared cursor state. An unknown metric yields nothing.
func (s *Store) Range(ctx context.Context, metric string, from, to time.Time) iter.Seq2[MetricValue, error] {
	from, to = Day(from), Day(to)
	return func(yield func(MetricValue, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			meta, found, err := readMeta(txn, metric)
			if err != nil {
				return err
			}
			if !found || meta.Count == 0 {
				return nil
			}
			currID := meta.Head
			visited := 0
			for currID != "" {
				if visited > meta.Count {
					return ErrCycleDetected
				}
				if visited%64 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				v, err := readValue(txn, metric, currID)
				if err != nil {
					return err
				}
				visited++
				if v.Date.After(to) {
					return nil
				}
				if !v.Date.Before(from) {
					if !yield(v, nil) {
						return errStopIteration
					}
				}
				succID, hasNext, err := readNext(txn, metric, currID)
				if err != nil {
					return err
				}
				if !hasNext {
					return nil
				}
				currID = succID
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(MetricValue{}, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Integrity
// -----------------------------------------------------------------------------

// IntegrityCheck walks HEAD -> ... -> TAIL and verifies the chain invariants:
// a single linear path, strictly increasing dates, traversal terminating at
// exactly the TAIL node, and no cycle (bounded by the recorded node count).
func (s *Store) IntegrityCheck(ctx context.Context, metric string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	rep := Report{Metric: metric, Intact: true}
	err := s.db.View(func(txn *badger.Txn) error {
		meta, found, err := readMeta(txn, metric)
		if err != nil {
			return err
		}
		if !found {
			return ErrUnknownMetric
		}
		rep.HeadDate, rep.TailDate = meta.HeadDate, meta.TailDate
		if meta.Count == 0 {
			if meta.Head != "" || meta.Tail != "" {
				rep.fail("empty chain still carries HEAD/TAIL pointers")
			}
			return nil
		}

		currID := meta.Head
		var prev *MetricValue
		for {
			if rep.Nodes > meta.Count {
				rep.fail(ErrCycleDetected.Error())
				return ErrCycleDetected
			}
			v, err := readValue(txn, metric, currID)
			if err != nil {
				return err
			}
			rep.Nodes++
			if prev != nil && !v.Date.After(prev.Date) {
				rep.fail(fmt.Sprintf("dates not strictly increasing at %s", v.Date.Format(time.DateOnly)))
			}
			prev = &v

			succID, hasNext, err := readNext(txn, metric, currID)
			if err != nil {
				return err
			}
			if !hasNext {
				if currID != meta.Tail {
					rep.fail("forward traversal ended before reaching TAIL")
				}
				break
			}
			if currID == meta.Tail {
				rep.fail("TAIL node has a NEXT successor")
				break
			}
			currID = succID
		}
		if rep.Nodes != meta.Count {
			rep.fail(fmt.Sprintf("visited %d nodes, directory records %d", rep.Nodes, meta.Count))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCycleDetected) {
			appendErrorsTotal.WithLabelValues("cycle").Inc()
			return rep, ErrCycleDetected
		}
		return rep, err
	}
	if !rep.Intact {
		s.logger.Error("chain integrity check failed",
			"metric", metric, "problems", strings.Join(rep.Problems, "; "))
	}
	return rep, nil
}

func (r *Report) fail(problem string) {
	r.Intact = false
	r.Problems = append(r.Problems, problem)
}

// -----------------------------------------------------------------------------
// Record codecs
// -----------------------------------------------------------------------------

func readMeta(txn *badger.Txn, metric string) (chainMeta, bool, error) {
	item, err := txn.Get(metaKey(metric))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chainMeta{}, false, nil
	}
	if err != nil {
		return chainMeta{}, false, fmt.Errorf("read chain directory for %q: %w", metric, err)
	}
	var meta chainMeta
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	}); err != nil {
		return chainMeta{}, false, fmt.Errorf("decode chain directory for %q: %w", metric, err)
	}
	return meta, true, nil
}

func writeMeta(txn *badger.Txn, meta chainMeta) error {
	buf, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode chain directory for %q: %w", meta.Name, err)
	}
	return txn.Set(metaKey(meta.Name), buf)
}

func readValue(txn *badger.Txn, metric, id string) (MetricValue, error) {
	item, err := txn.Get(valKey(metric, id))
	if err != nil {
		return MetricValue{}, fmt.Errorf("read chain node %s/%s: %w", metric, id, err)
	}
	var v MetricValue
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return MetricValue{}, fmt.Errorf("decode chain node %s/%s: %w", metric, id, err)
	}
	return v, nil
}

func writeValue(txn *badger.Txn, metric string, v MetricValue) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode chain node %s/%s: %w", metric, v.ID, err)
	}
	return txn.Set(valKey(metric, v.ID), buf)
}

func readNext(txn *badger.Txn, metric, id string) (string, bool, error) {
	item, err := txn.Get(nextKey(metric, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read NEXT pointer %s/%s: %w", metric, id, err)
	}
	var succ string
	if err := item.Value(func(val []byte) error {
		succ = string(val)
		return nil
	}); err != nil {
		return "", false, err
	}
	return succ, true, nil
}

func writeNext(txn *badger.Txn, metric, from, to string) error {
	return txn.Set(nextKey(metric, from), []byte(to))
}

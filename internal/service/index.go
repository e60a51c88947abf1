package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/model"
)

// DefaultFetchConcurrency bounds parallel blob fetches per listing.
const DefaultFetchConcurrency = 8

// Order of a listing by record time.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Query selects the pointers of one logical collection.
type Query struct {
	Prefix  string
	Exclude []string
	Order   Order
}

// NamespaceQuery lists ns oldest first.
func NamespaceQuery(ns model.Namespace) Query {
	return Query{Prefix: ns.Prefix, Exclude: ns.Exclude}
}

// Listing is a reconstructed collection. Skipped collects one error per
// pointer that could not be resolved; it is nil when every pointer resolved.
type Listing struct {
	Prefix  string
	Records []json.RawMessage
	Skipped *multierror.Error
}

// SkippedCount returns the number of unresolved pointers.
func (l Listing) SkippedCount() int {
	if l.Skipped == nil {
		return 0
	}
	return len(l.Skipped.Errors)
}

// Decode unmarshals every record of l into a T. Records that do not fit T
// are added to l.Skipped, logged and counted.
func Decode[T any](s *Index, l *Listing) []T {
	out := make([]T, 0, len(l.Records))
	dropped := 0
	for i, raw := range l.Records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			l.Skipped = multierror.Append(l.Skipped, fmt.Errorf("%s record %d: %w", l.Prefix, i, err))
			dropped++
			continue
		}
		out = append(out, v)
	}
	if dropped > 0 {
		s.logger.Warn("Index service: dropped undecodable records",
			"prefix", l.Prefix,
			"dropped", dropped,
			"error", l.Skipped.Error())
		s.metrics.AddIndexSkipped(l.Prefix, dropped)
	}
	return out
}

// Index rebuilds collections from the data entries of an account.
type Index struct {
	client      ledger.Client
	blobs       model.BlobStore
	concurrency int
	metrics     *metrics.Metrics
	logger      *logger.Logger
	tracer      trace.Tracer
}

func NewIndex(client ledger.Client, blobs model.BlobStore, concurrency int, metrics *metrics.Metrics, logger *logger.Logger) *Index {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &Index{
		client:      client,
		blobs:       blobs,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// ListByPrefix lists the records under prefix, oldest first.
func (s *Index) ListByPrefix(ctx context.Context, accountID, prefix string, exclude ...string) (Listing, error) {
	return s.List(ctx, accountID, Query{Prefix: prefix, Exclude: exclude})
}

// ListNamespace lists the records of ns in the requested order.
func (s *Index) ListNamespace(ctx context.Context, accountID string, ns model.Namespace, order Order) (Listing, error) {
	q := NamespaceQuery(ns)
	q.Order = order
	return s.List(ctx, accountID, q)
}

// List reads the account snapshot, resolves every matching pointer and merges
// the results by record time. Only a failure to read the snapshot is returned
// as an error.
func (s *Index) List(ctx context.Context, accountID string, q Query) (Listing, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "index.list", trace.WithAttributes(attribute.String("prefix", q.Prefix)))
	defer span.End()
	defer s.metrics.ObserveIndex(q.Prefix, start)

	snap, err := s.client.LoadAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("Index service: failed to load account",
			"account", accountID,
			"error", err)
		return Listing{}, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	keys := make([]string, 0, len(snap.Data))
	for key := range snap.Data {
		if model.MatchesPrefix(key, q.Prefix, q.Exclude...) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	span.SetAttributes(attribute.Int("keys", len(keys)))

	blobs := make([]json.RawMessage, len(keys))
	errs := make([]error, len(keys))

	pool := workerpool.New(s.concurrency)
	for i, key := range keys {
		cid := string(snap.Data[key])
		pool.Submit(func() {
			blobs[i], errs[i] = s.blobs.Fetch(ctx, cid)
		})
	}
	pool.StopWait()

	var (
		items   []item
		skipped *multierror.Error
	)
	for i, key := range keys {
		if errs[i] != nil {
			skipped = multierror.Append(skipped, fmt.Errorf("%s: %w", key, errs[i]))
			continue
		}
		records, err := flatten(blobs[i])
		if err != nil {
			skipped = multierror.Append(skipped, fmt.Errorf("%s: %w", key, err))
			continue
		}
		for j, rec := range records {
			items = append(items, item{raw: rec, at: recordTime(rec), key: i, pos: j})
		}
	}

	if skipped != nil {
		s.logger.Warn("Index service: skipped unresolved pointers",
			"account", accountID,
			"prefix", q.Prefix,
			"skipped", len(skipped.Errors),
			"error", skipped.Error())
		s.metrics.AddIndexSkipped(q.Prefix, len(skipped.Errors))
	}

	sort.SliceStable(items, func(a, b int) bool { return items[a].less(items[b]) })
	if q.Order == Descending {
		slices.Reverse(items)
	}

	out := Listing{Prefix: q.Prefix, Records: make([]json.RawMessage, len(items)), Skipped: skipped}
	for i, it := range items {
		out.Records[i] = it.raw
	}
	return out, nil
}

type item struct {
	raw json.RawMessage
	at  time.Time
	key int
	pos int
}

func (a item) less(b item) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	if a.key != b.key {
		return a.key < b.key
	}
	return a.pos < b.pos
}

// flatten accepts a single record or an array of records. Nulls are dropped.
func flatten(blob json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("failed to decode record array: %w", err)
		}
		out := elems[:0]
		for _, e := range elems {
			if isRecord(e) {
				out = append(out, e)
			}
		}
		return out, nil
	case '{':
		return []json.RawMessage{trimmed}, nil
	default:
		return nil, fmt.Errorf("blob is neither a record nor a list of records")
	}
}

func isRecord(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

type timeFields struct {
	Timestamp json.RawMessage `json:"timestamp"`
	CreatedAt json.RawMessage `json:"createdAt"`
}

// recordTime reads timestamp, falling back to createdAt. Records without a
// usable time sort first.
func recordTime(raw json.RawMessage) time.Time {
	var f timeFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}
	}
	if t, ok := model.ParseTime(f.Timestamp); ok {
		return t
	}
	if t, ok := model.ParseTime(f.CreatedAt); ok {
		return t
	}
	return time.Time{}
}

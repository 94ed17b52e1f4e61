package recents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	rerrors "github.com/otherjamesbrown/recents/pkg/errors"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/phone"
)

// DefaultMaxSize is the number of entries a page holds when the caller does
// not say otherwise. It is also the number of raw records read per page.
const DefaultMaxSize = 200

// DefaultUnknownLabel is shown for calls without caller id.
const DefaultUnknownLabel = "Unknown"

// Options tunes aggregation.
type Options struct {
	// QueryLimit caps the raw records read per page.
	QueryLimit int `yaml:"query_limit"`
	// ComparableDigits is the trailing-digit count used for fuzzy name matching.
	ComparableDigits int `yaml:"comparable_digits"`
	// UnknownLabel is the name given to calls without caller id.
	UnknownLabel string `yaml:"unknown_label"`
}

// DefaultOptions returns the stock aggregation settings.
func DefaultOptions() Options {
	return Options{
		QueryLimit:       DefaultMaxSize,
		ComparableDigits: phone.DefaultComparableDigits,
		UnknownLabel:     DefaultUnknownLabel,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QueryLimit <= 0 {
		o.QueryLimit = d.QueryLimit
	}
	if o.ComparableDigits <= 0 {
		o.ComparableDigits = d.ComparableDigits
	}
	if o.UnknownLabel == "" {
		o.UnknownLabel = d.UnknownLabel
	}
	return o
}

// Dependencies are the collaborators shared by Aggregator and Mutator.
// Sims, Blocked and Notifier are optional.
type Dependencies struct {
	Records  RecordSource
	Contacts ContactDirectory
	Sims     SimAccountRegistry
	Blocked  BlockedNumberRegistry
	Gate     PermissionGate
	Runner   Runner
	Notifier Notifier
}

// Option configures an Aggregator or Mutator.
type Option func(*settings)

type settings struct {
	options Options
	logger  logging.Logger
	metrics *Metrics
}

// WithOptions overrides the aggregation settings.
func WithOptions(o Options) Option {
	return func(s *settings) { s.options = o }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics sets the metrics sink. Without it metrics go to a private registry.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

func newSettings(opts []Option) settings {
	s := settings{options: DefaultOptions()}
	for _, opt := range opts {
		opt(&s)
	}
	s.options = s.options.withDefaults()
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return s
}

// PageRequest asks for the page following PreviousPage.
type PageRequest struct {
	GroupSubsequentCalls bool
	// MaxSize caps the entries this page adds. Zero or less means DefaultMaxSize.
	MaxSize int
	// PreviousPage is everything the caller has already shown, oldest last.
	PreviousPage []EnrichedCall
}

// PageResult is delivered exactly once per FetchPage call. On error Calls
// holds the unchanged previous page.
type PageResult struct {
	Calls []EnrichedCall
	Err   error
}

// Aggregator builds the enriched, paginated call feed.
type Aggregator struct {
	records  RecordSource
	contacts ContactDirectory
	sims     SimAccountRegistry
	blocked  BlockedNumberRegistry
	gate     PermissionGate
	runner   Runner

	options Options
	logger  logging.Logger
	metrics *Metrics
	tracer  *tracer
}

// NewAggregator creates an aggregator. Records, Contacts, Gate and Runner are required.
func NewAggregator(deps Dependencies, opts ...Option) (*Aggregator, error) {
	if deps.Records == nil || deps.Contacts == nil || deps.Gate == nil || deps.Runner == nil {
		return nil, fmt.Errorf("aggregator needs records, contacts, gate and runner: %w", rerrors.ErrValidation)
	}
	s := newSettings(opts)
	return &Aggregator{
		records:  deps.Records,
		contacts: deps.Contacts,
		sims:     deps.Sims,
		blocked:  deps.Blocked,
		gate:     deps.Gate,
		runner:   deps.Runner,
		options:  s.options,
		logger:   s.logger.With(logging.Component("aggregator")),
		metrics:  s.metrics,
		tracer:   newTracer(),
	}, nil
}

// FetchPage builds the next page of the feed in the background and delivers
// PreviousPage followed by the new entries on the returned channel.
//
// Without read access the previous page is delivered as-is and no work is
// scheduled. Concurrent calls are independent; none cancels another.
func (a *Aggregator) FetchPage(ctx context.Context, req PageRequest) <-chan PageResult {
	out := make(chan PageResult, 1)

	if !a.gate.HasReadAccess() {
		a.metrics.RecordPage(ResultDenied)
		out <- PageResult{Calls: req.PreviousPage}
		close(out)
		return out
	}

	requestID := uuid.New().String()
	ctx = logging.WithRequestID(ctx, requestID)
	log := a.logger.WithContext(ctx)

	// Private contacts are captured on the caller's goroutine, before dispatch.
	private, err := a.contacts.ListPrivateContacts(ctx)
	if err != nil {
		log.Warn("Private contacts unavailable", logging.Err(err))
		private = nil
	}

	task := func(context.Context) error {
		calls, err := a.fetch(ctx, requestID, req, private)
		if err != nil {
			a.metrics.RecordPage(ResultError)
			out <- PageResult{Calls: req.PreviousPage, Err: err}
		} else {
			a.metrics.RecordPage(ResultOK)
			out <- PageResult{Calls: calls}
		}
		close(out)
		return err
	}

	if err := a.runner.Submit(ctx, task); err != nil {
		log.Error("Failed to schedule page fetch", logging.Err(err))
		a.metrics.RecordPage(ResultError)
		out <- PageResult{Calls: req.PreviousPage, Err: fmt.Errorf("schedule fetch: %w", err)}
		close(out)
	}
	return out
}

// Fetch is the blocking form of FetchPage.
func (a *Aggregator) Fetch(ctx context.Context, req PageRequest) ([]EnrichedCall, error) {
	select {
	case res := <-a.FetchPage(ctx, req):
		return res.Calls, res.Err
	case <-ctx.Done():
		return req.PreviousPage, ctx.Err()
	}
}

type aggregationStats struct {
	scanned    int
	duplicates int
	groups     int
	folded     int
	blocked    int
	fuzzy      int
}

func (a *Aggregator) fetch(ctx context.Context, requestID string, req PageRequest, private []Contact) (calls []EnrichedCall, err error) {
	start := time.Now()
	maxSize := req.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	ctx, span := a.tracer.startFetch(ctx, requestID, req, maxSize)
	defer func() { endSpan(span, err) }()
	log := a.logger.WithContext(ctx)

	var (
		general  []Contact
		accounts []SimAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := a.contacts.ListContacts(gctx, true)
		if err != nil {
			log.Warn("Contacts unavailable", logging.Err(err))
			return nil
		}
		general = c
		return nil
	})
	if a.sims != nil {
		g.Go(func() error {
			s, err := a.sims.ListAccounts(gctx)
			if err != nil {
				log.Warn("SIM accounts unavailable", logging.Err(err))
				return nil
			}
			accounts = s
			return nil
		})
	}
	_ = g.Wait()

	contacts := make([]Contact, 0, len(general)+len(private))
	contacts = append(contacts, general...)
	contacts = append(contacts, private...)
	lk := newLookup(contacts, accounts, a.options.ComparableDigits)

	query := RecordQuery{Limit: a.options.QueryLimit, Descending: true}
	if n := len(req.PreviousPage); n > 0 {
		before := req.PreviousPage[n-1].StartTS * 1000
		query.BeforeMs = &before
	}

	records, err := a.records.Query(ctx, query)
	if err != nil {
		log.Error("Call history query failed", logging.Err(err))
		return nil, rerrors.NewStoreError("query", err)
	}
	span.SetAttributes(attribute.Int(AttrRecordCount, len(records)))

	groups, stats := a.aggregate(records, lk, req.GroupSubsequentCalls, maxSize)
	visible := a.filterBlocked(ctx, groups, &stats)
	stats.fuzzy = lk.fuzzyHits

	calls = make([]EnrichedCall, 0, len(req.PreviousPage)+len(visible))
	calls = append(calls, req.PreviousPage...)
	calls = append(calls, visible...)

	elapsed := time.Since(start)
	a.metrics.RecordAggregation(stats, elapsed.Seconds())
	span.SetAttributes(attribute.Int(AttrCallCount, len(visible)))
	log.Debug("Page fetched",
		logging.F("records", stats.scanned),
		logging.F("duplicates", stats.duplicates),
		logging.F("groups", stats.groups),
		logging.F("blocked", stats.blocked),
		logging.F("elapsed", elapsed))
	return calls, nil
}

type groupKey struct {
	number string
	name   string
	simID  int
}

// aggregate walks records newest first, enriching each, dropping records
// whose start second equals the previous record's, and optionally folding
// consecutive records with the same number, name and line into one entry.
// It stops once maxSize entries exist.
func (a *Aggregator) aggregate(records []RawRecord, lk *lookup, group bool, maxSize int) ([]EnrichedCall, aggregationStats) {
	var (
		stats     aggregationStats
		calls     []EnrichedCall
		prevStart int64
		havePrev  bool
		prevKey   groupKey
	)

	for _, rec := range records {
		if len(calls) >= maxSize {
			break
		}
		stats.scanned++

		number := deref(rec.Number)
		unknown := rec.Number == nil || number == UnknownNumber

		name := deref(rec.CachedName)
		if name == "" || name == UnknownNumber {
			name = number
		}
		if name == number && !unknown {
			name = lk.resolveName(number)
		}
		if name == "" || name == UnknownNumber {
			name = a.options.UnknownLabel
		}

		photo := deref(rec.CachedPhotoURI)
		if photo == "" && !unknown {
			photo = lk.photo(number)
		}

		startTS := rec.TimestampMs / 1000
		if havePrev && startTS == prevStart {
			stats.duplicates++
			continue
		}
		prevStart, havePrev = startTS, true

		simID, simColor := lk.sim(rec.AccountID)
		specificNumber, specificType := lk.specificNumber(number)

		key := groupKey{number: number, name: name, simID: simID}
		if group && len(calls) > 0 && key == prevKey {
			last := &calls[len(calls)-1]
			last.NeighbourIDs = append(last.NeighbourIDs, rec.ID)
			stats.folded++
		} else {
			calls = append(calls, EnrichedCall{
				ID:              rec.ID,
				PhoneNumber:     number,
				Name:            name,
				PhotoURI:        photo,
				StartTS:         startTS,
				DurationSeconds: rec.DurationSeconds,
				Type:            rec.Type,
				NeighbourIDs:    []int64{},
				SimID:           simID,
				SimColor:        simColor,
				SpecificNumber:  specificNumber,
				SpecificType:    specificType,
				IsUnknownNumber: unknown,
			})
		}
		prevKey = key
	}

	stats.groups = len(calls)
	return calls, stats
}

// filterBlocked drops entries whose number is blocked. A failed check keeps
// the entry.
func (a *Aggregator) filterBlocked(ctx context.Context, calls []EnrichedCall, stats *aggregationStats) []EnrichedCall {
	if a.blocked == nil || len(calls) == 0 {
		return calls
	}

	verdicts := make(map[string]bool)
	visible := make([]EnrichedCall, 0, len(calls))
	for _, call := range calls {
		blocked, seen := verdicts[call.PhoneNumber]
		if !seen {
			var err error
			blocked, err = a.blocked.IsBlocked(ctx, call.PhoneNumber)
			if err != nil {
				a.logger.WithContext(ctx).Warn("Blocked-number check failed",
					logging.F("number", call.PhoneNumber), logging.Err(err))
				blocked = false
			}
			verdicts[call.PhoneNumber] = blocked
		}
		if blocked {
			stats.blocked++
			continue
		}
		visible = append(visible, call)
	}
	return visible
}

// Package marketdata exposes the NSE endpoints the product serves, each
// resolved through the stale-while-revalidate orchestrator under a named
// freshness policy and normalized into canonical records.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/normalize"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
)

var (
	// ErrInvalidArgument is returned for malformed symbols, index names or options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoData is returned when a single-record endpoint normalizes to
	// nothing or a movers payload has no list for the requested index.
	ErrNoData = errors.New("no data in upstream response")
)

// Upstream fetches decoded JSON from an upstream path.
type Upstream interface {
	Fetch(ctx context.Context, path, query string) (any, error)
}

// Upstream paths.
const (
	pathVariations  = "/api/live-analysis-variations"
	pathMostActive  = "/api/live-analysis-most-active-securities"
	pathAllIndices  = "/api/allIndices"
	pathAdvance     = "/api/live-analysis-advance"
	pathIndexChart  = "/api/chart-databyindex"
	pathGraphChart  = "/api/NextApi/apiClient"
	pathQuote       = "/api/quote-equity"
	pathAnnounce    = "/api/corporate-announcements"
	pathCorpActions = "/api/corporates-corporateActions"
	pathEvents      = "/api/event-calendar"
	pathLargeDeals  = "/api/snapshot-capital-market-largedeal"
)

// Timeframes accepted by IndexChart. "1D" is the intraday series.
var Timeframes = []string{"1D", "1W", "1M", "3M", "6M", "1Y"}

var (
	symbolPattern = regexp.MustCompile(`^[A-Z0-9&_.\-]{1,20}$`)
	indexPattern  = regexp.MustCompile(`^[A-Za-z0-9 &_.\-]{1,40}$`)
)

// Service resolves market data.
type Service struct {
	upstream     Upstream
	orchestrator *swr.Orchestrator
	policies     Policies
	logger       zerolog.Logger
}

// NewService creates a service. Policies missing from policies use defaults.
func NewService(upstream Upstream, orchestrator *swr.Orchestrator, policies Policies, logger zerolog.Logger) (*Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	merged := policies.Merge()
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		upstream:     upstream,
		orchestrator: orchestrator,
		policies:     merged,
		logger:       logger.With().Str("component", "marketdata").Logger(),
	}, nil
}

// Policy returns the policy registered under name.
func (s *Service) Policy(name PolicyName) swr.Policy {
	return s.policies[name]
}

// Sweep evicts cached entries no policy can serve any more, not even stale,
// and returns how many it dropped.
func (s *Service) Sweep() int {
	n := 0
	for _, tier := range s.orchestrator.Tiers().All() {
		n += tier.Sweep(s.policies.MaxSWR(tier.Name()))
	}
	return n
}

// resolve fetches path through the orchestrator and normalizes the payload.
func resolve[T any](ctx context.Context, s *Service, key string, policy PolicyName, path string, query url.Values, build func(raw any) (T, error)) (swr.Result[T], error) {
	res, err := swr.Resolve(ctx, s.orchestrator, key, s.policies[policy], func(ctx context.Context) (T, error) {
		raw, err := s.upstream.Fetch(ctx, path, query.Encode())
		if err != nil {
			var zero T
			return zero, err
		}
		return build(raw)
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("key", key).
			Str("path", path).
			Msg("Synchronous upstream fetch failed")
	}
	return res, err
}

func list[T any](f func(raw any) []T) func(raw any) ([]T, error) {
	return func(raw any) ([]T, error) { return f(raw), nil }
}

func single[T any](f func(raw any) []T) func(raw any) (T, error) {
	return func(raw any) (T, error) {
		out := f(raw)
		if len(out) == 0 {
			var zero T
			return zero, ErrNoData
		}
		return out[0], nil
	}
}

// movers builds a movers list, failing with ErrNoData when the payload holds
// no list for index so that unknown categories are never cached.
func movers[T any](index string, f func(raw any, index string) ([]T, bool)) func(raw any) ([]T, error) {
	return func(raw any) ([]T, error) {
		out, found := f(raw, index)
		if !found {
			return nil, fmt.Errorf("%w: index %q", ErrNoData, index)
		}
		return out, nil
	}
}

func moversKey(category, index string) string {
	if strings.EqualFold(index, normalize.DefaultMoversIndex) {
		return cache.NewKey(category)
	}
	return cache.NewKey(category, index)
}

// cleanIndex validates index and keeps its casing; upstream category keys
// such as "allSec" and "FOSec" are mixed case.
func cleanIndex(index string) (string, error) {
	index = strings.TrimSpace(index)
	if index == "" {
		return normalize.DefaultMoversIndex, nil
	}
	if !indexPattern.MatchString(index) {
		return "", fmt.Errorf("%w: index %q", ErrInvalidArgument, index)
	}
	return index, nil
}

// Gainers returns the top gainers of index (default NIFTY).
func (s *Service) Gainers(ctx context.Context, index string) (swr.Result[[]normalize.Gainer], error) {
	index, err := cleanIndex(index)
	if err != nil {
		return swr.Result[[]normalize.Gainer]{}, err
	}
	return resolve(ctx, s, moversKey("gainers", index), PolicyMovers, pathVariations,
		url.Values{"index": {"gainers"}},
		movers(index, normalize.GainersFor))
}

// Losers returns the top losers of index (default NIFTY).
func (s *Service) Losers(ctx context.Context, index string) (swr.Result[[]normalize.Loser], error) {
	index, err := cleanIndex(index)
	if err != nil {
		return swr.Result[[]normalize.Loser]{}, err
	}
	// The upstream spells this category "loosers".
	return resolve(ctx, s, moversKey("losers", index), PolicyMovers, pathVariations,
		url.Values{"index": {"loosers"}},
		movers(index, normalize.LosersFor))
}

// MostActive returns the most active securities ranked by "volume" or "value".
func (s *Service) MostActive(ctx context.Context, by string) (swr.Result[[]normalize.MostActive], error) {
	by = strings.ToLower(strings.TrimSpace(by))
	if by == "" {
		by = "volume"
	}
	if by != "volume" && by != "value" {
		return swr.Result[[]normalize.MostActive]{}, fmt.Errorf("%w: most active by %q", ErrInvalidArgument, by)
	}
	return resolve(ctx, s, cache.NewKey("most-active", by), PolicyMostActive, pathMostActive,
		url.Values{"index": {by}},
		list(normalize.MostActives))
}

// AllIndices returns the all-indices board.
func (s *Service) AllIndices(ctx context.Context) (swr.Result[[]normalize.IndexQuote], error) {
	return resolve(ctx, s, cache.NewKey("indices"), PolicyIndices, pathAllIndices, nil,
		list(normalize.Indices))
}

// AdvanceDecline returns market breadth.
func (s *Service) AdvanceDecline(ctx context.Context) (swr.Result[normalize.AdvanceDecline], error) {
	return resolve(ctx, s, cache.NewKey("advance-decline"), PolicyIndices, pathAdvance, nil,
		single(normalize.AdvanceDeclines))
}

// IndexChart returns chart samples of index name over timeframe (default "1D").
func (s *Service) IndexChart(ctx context.Context, name, timeframe string) (swr.Result[[]normalize.ChartPoint], error) {
	name = strings.TrimSpace(name)
	if name == "" || !indexPattern.MatchString(name) {
		return swr.Result[[]normalize.ChartPoint]{}, fmt.Errorf("%w: index %q", ErrInvalidArgument, name)
	}
	name = strings.ToUpper(name)

	timeframe = strings.ToUpper(strings.TrimSpace(timeframe))
	if timeframe == "" {
		timeframe = "1D"
	}
	if !validTimeframe(timeframe) {
		return swr.Result[[]normalize.ChartPoint]{}, fmt.Errorf("%w: timeframe %q", ErrInvalidArgument, timeframe)
	}

	key := cache.Key{Category: "index", Identifier: name, SubResource: "chart", Variant: timeframe}.String()
	path, query := pathIndexChart, url.Values{"index": {name}, "indices": {"true"}}
	if timeframe != "1D" {
		path = pathGraphChart
		query = url.Values{"functionName": {"getGraphChart"}, "type": {name}, "flag": {timeframe}}
	}
	return resolve(ctx, s, key, PolicyIndexChart, path, query, list(normalize.ChartPoints))
}

func validTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Quote returns the equity quote of symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (swr.Result[normalize.Quote], error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return swr.Result[normalize.Quote]{}, fmt.Errorf("%w: symbol %q", ErrInvalidArgument, symbol)
	}
	return resolve(ctx, s, cache.NewKey("quote", symbol), PolicyQuote, pathQuote,
		url.Values{"symbol": {symbol}},
		single(normalize.Quotes))
}

// CorporateAnnouncements returns recent equity announcements.
func (s *Service) CorporateAnnouncements(ctx context.Context) (swr.Result[[]normalize.CorporateInfo], error) {
	return resolve(ctx, s, cache.NewKey("corporate", "announcements"), PolicyCorporate, pathAnnounce,
		url.Values{"index": {"equities"}},
		list(normalize.CorporateAnnouncements))
}

// CorporateActions returns upcoming corporate actions.
func (s *Service) CorporateActions(ctx context.Context) (swr.Result[[]normalize.CorporateAction], error) {
	return resolve(ctx, s, cache.NewKey("corporate", "actions"), PolicyCorporate, pathCorpActions,
		url.Values{"index": {"equities"}},
		list(normalize.CorporateActions))
}

// CorporateEvents returns the event calendar.
func (s *Service) CorporateEvents(ctx context.Context) (swr.Result[[]normalize.CorporateEvent], error) {
	return resolve(ctx, s, cache.NewKey("corporate", "events"), PolicyCorporate, pathEvents,
		url.Values{"index": {"equities"}},
		list(normalize.CorporateEvents))
}

// Deals returns the bulk, block or short-selling board.
func (s *Service) Deals(ctx context.Context, kind string) (swr.Result[[]normalize.Deal], error) {
	k, ok := normalize.ParseDealKind(strings.ToLower(strings.TrimSpace(kind)))
	if !ok {
		return swr.Result[[]normalize.Deal]{}, fmt.Errorf("%w: deal kind %q", ErrInvalidArgument, kind)
	}
	return resolve(ctx, s, cache.NewKey("deals", string(k)), PolicyDeals, pathLargeDeals, nil,
		list(func(raw any) []normalize.Deal { return normalize.Deals(raw, k) }))
}

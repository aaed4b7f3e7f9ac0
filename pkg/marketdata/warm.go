package marketdata

import "context"

// WarmTarget is an endpoint worth keeping warm in the cache.
type WarmTarget struct {
	Name string
	Run  func(ctx context.Context) error
}

func discard(f func(ctx context.Context) (any, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := f(ctx)
		return err
	}
}

// HotTargets returns the hot-tier endpoints with their default arguments.
func (s *Service) HotTargets() []WarmTarget {
	return []WarmTarget{
		{Name: "gainers", Run: discard(func(ctx context.Context) (any, error) { return s.Gainers(ctx, "") })},
		{Name: "losers", Run: discard(func(ctx context.Context) (any, error) { return s.Losers(ctx, "") })},
		{Name: "most-active:volume", Run: discard(func(ctx context.Context) (any, error) { return s.MostActive(ctx, "volume") })},
		{Name: "most-active:value", Run: discard(func(ctx context.Context) (any, error) { return s.MostActive(ctx, "value") })},
		{Name: "indices", Run: discard(func(ctx context.Context) (any, error) { return s.AllIndices(ctx) })},
		{Name: "advance-decline", Run: discard(func(ctx context.Context) (any, error) { return s.AdvanceDecline(ctx) })},
	}
}

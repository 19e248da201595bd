package marketdata

import (
	"context"

	"github.com/finresearch/orchestrator/internal/providers"
)

// SchwabSource adapts *providers.SchwabClient to Source.
type SchwabSource struct{ Client *providers.SchwabClient }

func (s SchwabSource) Name() string { return "schwab" }

func (s SchwabSource) Quote(ctx context.Context, symbol string) (providers.RawQuote, error) {
	return s.Client.Quote(ctx, symbol)
}

func (s SchwabSource) History(ctx context.Context, symbol string, days int) ([]providers.RawHistoryRow, error) {
	return s.Client.History(ctx, symbol, days)
}

func (s SchwabSource) Movers(ctx context.Context, index, sort string) ([]providers.RawMover, error) {
	return s.Client.Movers(ctx, index, sort)
}

func (s SchwabSource) MarketHours(ctx context.Context) ([]providers.RawMarketHours, error) {
	return s.Client.MarketHours(ctx, []string{"equity"})
}

// AlpacaSource adapts *providers.AlpacaClient to Source.
type AlpacaSource struct{ Client *providers.AlpacaClient }

func (a AlpacaSource) Name() string { return "alpaca" }

func (a AlpacaSource) Quote(ctx context.Context, symbol string) (providers.RawQuote, error) {
	return a.Client.Quote(ctx, symbol)
}

func (a AlpacaSource) History(ctx context.Context, symbol string, days int) ([]providers.RawHistoryRow, error) {
	return a.Client.History(ctx, symbol, days)
}

func (a AlpacaSource) Movers(ctx context.Context, index, sort string) ([]providers.RawMover, error) {
	return a.Client.Movers(ctx, sort)
}

func (a AlpacaSource) MarketHours(ctx context.Context) ([]providers.RawMarketHours, error) {
	return a.Client.MarketHours(ctx)
}

// OrderSources returns sources arranged per the configured OrderMode.
func OrderSources(mode OrderMode, schwab *providers.SchwabClient, alpaca *providers.AlpacaClient) []Source {
	schwabSrc, alpacaSrc := SchwabSource{schwab}, AlpacaSource{alpaca}
	switch mode {
	case OrderAlpacaFirst:
		return []Source{alpacaSrc, schwabSrc}
	case OrderSchwabFirst, OrderAuto:
		fallthrough
	default:
		return []Source{schwabSrc, alpacaSrc}
	}
}

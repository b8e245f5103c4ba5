package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"portfolio-tracker/internal/apperrors"
	"portfolio-tracker/internal/marketstack"
	"portfolio-tracker/internal/models"
)

const (
	latestLookbackDays = 7
	latestLimit        = 5

	nearestDaysBefore = 5
	nearestDaysAfter  = 1
	nearestLimit      = 10
)

// EODSource returns end-of-day bars for a query window.
type EODSource interface {
	EOD(ctx context.Context, q marketstack.EODQuery) ([]marketstack.Bar, error)
}

// PriceResolver picks a single closing price for a symbol near a date.
type PriceResolver struct {
	src EODSource
	log *logrus.Logger
	now func() time.Time
}

type ResolverOption func(*PriceResolver)

// WithClock overrides the source of "today" for the no-date lookup.
func WithClock(now func() time.Time) ResolverOption {
	return func(p *PriceResolver) {
		p.now = now
	}
}

func NewPriceResolver(src EODSource, log *logrus.Logger, opts ...ResolverOption) *PriceResolver {
	p := &PriceResolver{src: src, log: log, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the latest close when date is empty, otherwise the close of
// the trading day nearest to date (YYYY-MM-DD).
func (p *PriceResolver) Resolve(ctx context.Context, symbol, date string) (models.Quote, error) {
	if date == "" {
		return p.latest(ctx, symbol)
	}
	target, err := time.Parse(marketstack.DateFormat, date)
	if err != nil {
		return models.Quote{}, apperrors.Validation(fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", date))
	}
	return p.nearest(ctx, symbol, target)
}

func (p *PriceResolver) latest(ctx context.Context, symbol string) (models.Quote, error) {
	bars, err := p.fetch(ctx, latestQuery(symbol, p.now()))
	if err != nil {
		return models.Quote{}, err
	}
	return models.Quote{Price: bars[0].Close, Date: bars[0].Date}, nil
}

func (p *PriceResolver) nearest(ctx context.Context, symbol string, target time.Time) (models.Quote, error) {
	bars, err := p.fetch(ctx, nearestQuery(symbol, target))
	if err != nil {
		return models.Quote{}, err
	}
	b, err := closest(bars, target)
	if err != nil {
		return models.Quote{}, apperrors.Upstream(err)
	}
	return models.Quote{Price: b.Close, Date: b.Date}, nil
}

// fetch returns a non-empty bar list or a categorized error.
func (p *PriceResolver) fetch(ctx context.Context, q marketstack.EODQuery) ([]marketstack.Bar, error) {
	bars, err := p.src.EOD(ctx, q)
	if err != nil {
		p.log.Warnf("eod lookup for %s failed: %v", q.Symbol, err)
		return nil, apperrors.Upstream(err)
	}
	if len(bars) == 0 {
		return nil, apperrors.NotFound("No data found")
	}
	return bars, nil
}

func latestQuery(symbol string, now time.Time) marketstack.EODQuery {
	return marketstack.EODQuery{
		Symbol: symbol,
		From:   now.AddDate(0, 0, -latestLookbackDays),
		To:     now,
		Sort:   marketstack.SortDesc,
		Limit:  latestLimit,
	}
}

// nearestQuery looks a few days back so a weekend or holiday target still
// finds the prior session.
func nearestQuery(symbol string, target time.Time) marketstack.EODQuery {
	return marketstack.EODQuery{
		Symbol: symbol,
		From:   target.AddDate(0, 0, -nearestDaysBefore),
		To:     target.AddDate(0, 0, nearestDaysAfter),
		Sort:   marketstack.SortDesc,
		Limit:  nearestLimit,
	}
}

// closest returns the bar whose day is nearest to target. On equal distance
// the earlier bar in the slice wins.
func closest(bars []marketstack.Bar, target time.Time) (marketstack.Bar, error) {
	best := -1
	var bestDist time.Duration
	for i, b := range bars {
		day, err := b.Day()
		if err != nil {
			return marketstack.Bar{}, err
		}
		dist := day.Sub(target)
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return bars[best], nil
}

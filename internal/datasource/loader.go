package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/fund-backtester/internal/metrics"
	"github.com/yourusername/fund-backtester/internal/models"
	"github.com/yourusername/fund-backtester/internal/nav"
	"golang.org/x/sync/errgroup"
)

// LoadRequest names the market data one backtest run needs
type LoadRequest struct {
	Codes     []string
	Benchmark string
	Begin     time.Time
	End       time.Time
	NAVType   NAVType
}

// Loader fetches everything a run needs from a Source and assembles a nav.Market
type Loader struct {
	source Source
	logger *logrus.Entry
}

// NewLoader creates a loader over source
func NewLoader(source Source, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{
		source: source,
		logger: logger.WithFields(logrus.Fields{"component": "loader", "source": source.Name()}),
	}
}

// Load fetches the calendar, fund NAVs, benchmark and fund master data
// concurrently. Funds missing from the master data are treated as
// non money-market funds named by their code.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*nav.Market, error) {
	codes := uniqueCodes(req.Codes)
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one fund code is required")
	}
	navType := req.NAVType
	if navType == "" {
		navType = NAVTypeAdjusted
	}

	var (
		calendar  *nav.Calendar
		points    []models.NAVPoint
		quotes    []models.NAVPoint
		known     []models.Instrument
		g, gctx   = errgroup.WithContext(ctx)
		begin     = models.TruncateDate(req.Begin)
		end       = models.TruncateDate(req.End)
		benchmark = req.Benchmark
	)

	g.Go(func() error {
		return l.timed("calendar", func() (err error) {
			calendar, err = nav.TradingDates(gctx, l.source, begin, end)
			return err
		})
	})
	g.Go(func() error {
		return l.timed("fund_nav", func() (err error) {
			points, err = l.source.FundNAV(gctx, codes, begin, end, navType)
			return err
		})
	})
	if benchmark != "" {
		g.Go(func() error {
			return l.timed("index_quote", func() (err error) {
				quotes, err = l.source.IndexQuotes(gctx, benchmark, begin, end)
				return err
			})
		})
	}
	g.Go(func() error {
		return l.timed("fund_info", func() (err error) {
			known, err = l.source.Instruments(gctx, codes)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	book := nav.BookFromPoints(points)
	for _, code := range codes {
		if book.Series(code).Len() == 0 {
			l.logger.WithField("code", code).Warn("No NAV data in range; orders for this fund will be rejected")
		}
	}

	var bench *nav.Series
	if benchmark != "" {
		bench = nav.SeriesFromPoints(quotes)
		if bench.Len() == 0 {
			l.logger.WithField("benchmark", benchmark).Warn("No benchmark quotes in range")
		}
	}

	instruments := mergeInstruments(codes, known)
	l.logger.WithFields(logrus.Fields{
		"funds":      len(codes),
		"nav_points": len(points),
		"days":       calendar.Len(),
		"benchmark":  benchmark,
	}).Info("Market data loaded")

	return nav.NewMarket(calendar, book, bench, instruments)
}

func (l *Loader) timed(query string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordDataSourceRequest(l.source.Name(), query, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", query, err)
	}
	return nil
}

// mergeInstruments orders instruments by codes and fills in funds the
// source does not know
func mergeInstruments(codes []string, known []models.Instrument) []models.Instrument {
	byCode := make(map[string]models.Instrument, len(known))
	for _, inst := range known {
		byCode[inst.Code] = inst
	}
	out := make([]models.Instrument, len(codes))
	for i, code := range codes {
		inst, ok := byCode[code]
		if !ok {
			inst = models.Instrument{Code: code, Category: models.FundCategoryOther}
		}
		out[i] = inst
	}
	return out
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

package backtest

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/revertlabs/meanrev/internal/market"
)

// WalkForwardConfig partitions a bar series into sequential folds. Each fold
// is split into a training prefix and a validation suffix; only the
// validation slice is backtested, so every reported trade comes from data
// the parameters never saw.
type WalkForwardConfig struct {
	Strategy   Config  `yaml:"strategy" json:"strategy"`
	Folds      int     `yaml:"folds" json:"folds"`
	TrainRatio float64 `yaml:"train_ratio" json:"train_ratio"`
}

// DefaultWalkForwardConfig uses five folds with a 70/30 train/validation
// split.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		Strategy:   DefaultConfig(),
		Folds:      5,
		TrainRatio: 0.7,
	}
}

// Validate rejects unusable fold parameters.
func (c WalkForwardConfig) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.Folds < 1 {
		return fmt.Errorf("folds must be >= 1, got %d", c.Folds)
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("train ratio must be in (0, 1), got %v", c.TrainRatio)
	}
	return nil
}

// FoldResult is one fold's validation backtest.
type FoldResult struct {
	Fold            int     `json:"fold"`
	TrainBars       int     `json:"train_bars"`
	ValidationBars  int     `json:"validation_bars"`
	ValidationPnL   float64 `json:"validation_pnl"`
	Trades          int     `json:"trades"`
	WinRate         float64 `json:"win_rate"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	ProfitableValid bool    `json:"profitable"`
}

// WalkForwardResult aggregates across folds. Aggregate fields are zero when
// no fold produced a single trade. WinRate is fold-level: the share of folds
// whose validation slice finished non-negative. AggregateSharpe treats each
// fold's PnL as one observation, scaled by the square root of the fold
// count.
type WalkForwardResult struct {
	Folds           []FoldResult `json:"folds"`
	TotalPnL        float64      `json:"total_pnl"`
	TotalTrades     int          `json:"total_trades"`
	ProfitableFolds int          `json:"profitable_folds"`
	WinRate         float64      `json:"win_rate"`
	ProfitFactor    float64      `json:"profit_factor"`
	AggregateSharpe float64      `json:"aggregate_sharpe"`
	WorstDrawdown   float64      `json:"worst_drawdown"`
}

// Analyzer runs the walk-forward partition over a bar series.
type Analyzer struct {
	cfg WalkForwardConfig
}

// NewAnalyzer validates the config and returns an analyzer.
func NewAnalyzer(cfg WalkForwardConfig) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("walkforward config: %w", err)
	}
	return &Analyzer{cfg: cfg}, nil
}

// Run partitions the bars into folds and backtests each fold's validation
// slice concurrently. Fold results keep their chronological order regardless
// of completion order. Division remainder bars past the last full fold are
// dropped. Too few bars to form a single non-empty validation slice is an
// error.
func (a *Analyzer) Run(bars []market.Bar) (*WalkForwardResult, error) {
	foldSize := len(bars) / a.cfg.Folds
	trainSize := int(float64(foldSize) * a.cfg.TrainRatio)
	if foldSize < 2 || trainSize < 1 || trainSize >= foldSize {
		return nil, fmt.Errorf("insufficient bars for walk-forward: %d bars across %d folds", len(bars), a.cfg.Folds)
	}

	folds := make([]FoldResult, a.cfg.Folds)
	errs := make([]error, a.cfg.Folds)

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Folds; i++ {
		start := i * foldSize
		end := start + foldSize
		validation := bars[start+trainSize : end]

		wg.Add(1)
		go func(i, trainBars int, validation []market.Bar) {
			defer wg.Done()

			engine, err := NewEngine(a.cfg.Strategy)
			if err != nil {
				errs[i] = err
				return
			}
			res, err := engine.Run(validation)
			if err != nil {
				errs[i] = err
				return
			}
			folds[i] = FoldResult{
				Fold:            i + 1,
				TrainBars:       trainBars,
				ValidationBars:  len(validation),
				ValidationPnL:   res.TotalPnL,
				Trades:          res.TotalTrades,
				WinRate:         res.WinRate,
				SharpeRatio:     res.SharpeRatio,
				MaxDrawdown:     res.MaxDrawdown,
				ProfitableValid: res.TotalPnL >= 0,
			}
		}(i, trainSize, validation)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := aggregateFolds(folds)

	log.Info().
		Int("folds", len(folds)).
		Int("trades", result.TotalTrades).
		Float64("total_pnl", result.TotalPnL).
		Msg("walk-forward analysis complete")

	return result, nil
}

// aggregateFolds folds per-fold validation results into the cross-fold
// metrics. Each fold's PnL is one observation: the win rate is the share of
// non-negative folds, the profit factor the ratio of winning to losing fold
// PnL, and the Sharpe ratio mean over stddev of fold PnLs scaled by sqrt of
// the fold count. A run with zero trades leaves all aggregates at zero.
func aggregateFolds(folds []FoldResult) *WalkForwardResult {
	result := &WalkForwardResult{Folds: folds}
	var grossWin, grossLoss float64
	pnls := make([]float64, 0, len(folds))
	for _, f := range folds {
		result.TotalPnL += f.ValidationPnL
		result.TotalTrades += f.Trades
		pnls = append(pnls, f.ValidationPnL)
		if f.ProfitableValid {
			result.ProfitableFolds++
			grossWin += f.ValidationPnL
		} else {
			grossLoss += f.ValidationPnL
		}
		if f.MaxDrawdown > result.WorstDrawdown {
			result.WorstDrawdown = f.MaxDrawdown
		}
	}

	if result.TotalTrades > 0 {
		n := float64(len(folds))
		result.WinRate = float64(result.ProfitableFolds) / n * 100
		if grossLoss < 0 {
			result.ProfitFactor = grossWin / math.Abs(grossLoss)
		}
		result.AggregateSharpe = foldSharpe(pnls)
	}
	return result
}

// foldSharpe is mean/stddev of the fold PnLs scaled by sqrt(folds). Fewer
// than two folds, or identical PnLs across folds, yields 0.
func foldSharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pnls {
		sum += p
	}
	mean := sum / float64(len(pnls))

	var sqDiff float64
	for _, p := range pnls {
		d := p - mean
		sqDiff += d * d
	}
	variance := sqDiff / float64(len(pnls)-1)
	if variance <= 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(pnls)))
}

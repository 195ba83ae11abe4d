package risk

// DailyStats accumulates intraday trade outcomes. It is mutated only by
// trade-close events and reset at the trading-day boundary by the caller.
type DailyStats struct {
	TradesCount       int     `json:"trades_count"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	RealizedPnL       float64 `json:"realized_pnl"`
}

// RecordTrade folds a closed trade's realized PnL into the day's totals.
// A non-negative PnL counts as a win and clears the consecutive-loss streak.
func (s *DailyStats) RecordTrade(pnl float64) {
	s.TradesCount++
	s.RealizedPnL += pnl
	if pnl >= 0 {
		s.WinningTrades++
		s.ConsecutiveLosses = 0
	} else {
		s.LosingTrades++
		s.ConsecutiveLosses++
	}
}

// Reset zeroes the day's statistics.
func (s *DailyStats) Reset() {
	*s = DailyStats{}
}

// WinRate returns the percentage of winning trades, 0 for an empty day.
func (s *DailyStats) WinRate() float64 {
	if s.TradesCount == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TradesCount) * 100
}

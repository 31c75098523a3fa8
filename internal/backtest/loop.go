package backtest

import (
	"sort"
	"time"

	"backtest-core/internal/bar"
	"backtest-core/internal/indicators"
	"backtest-core/internal/money"
	"backtest-core/internal/oms"
	"backtest-core/internal/risk"
	"backtest-core/internal/strategy"
)

// Simulator is the per-bar phase orchestrator. One instance runs one
// backtest to completion; instances share no mutable state, so an
// Optimizer can run many concurrently (see optimizer.go). Structurally
// grounded on the teacher's "orchestrator struct composing sub-managers,
// built via a Config-taking constructor" idiom
// (internal/engine.Impl/NewImpl), with the DB/bus/gateway fields replaced
// by the OMS/risk/strategy fields this domain needs.
type Simulator struct {
	cfg       Config
	strat     strategy.Strategy
	execution *oms.ExecutionEngine
	governor  *risk.Manager
	ids       oms.IDGenerator

	// cash is the ledger's running cash balance. Kept as an exact
	// money.Value per spec.md §3's "Monetary values" (cash/realized_pnl/
	// total_value are the decimal ledger; everything else in this file is
	// float64 boundary conversion — strategy prices, indicator math,
	// reported Trade/EquityPoint values).
	cash      money.Value
	books     map[bar.Symbol]*oms.OrderBook
	positions *oms.PositionManager

	// totalCommission accumulates every commission ever debited from cash,
	// independent of how it is later attributed to a Trade or left
	// unrealized on an open position's entry fills — used by invariant 5.
	totalCommission money.Value

	deferred   []deferredOrder
	entryCache map[bar.Symbol]entryLevels

	// trailTracker ratchets the strategy-computed trailing-stop candidate
	// per symbol so it never loosens. Grounded on risk.TrailingStopTracker
	// (the teacher's StopLossManager generalization).
	trailTracker *risk.TrailingStopTracker

	// indicatorEngines gives strategies an O(1)-per-bar streaming
	// alternative to recomputing SMA/RSI over the full history slice
	// every call, via ctx.Indicators — one indicators.Engine per symbol,
	// fed a close price each bar.
	indicatorEngines map[bar.Symbol]*indicators.Engine

	trades []Trade
	equity []EquityPoint
}

// NewSimulator wires a fresh Simulator: empty books/ledger/caches, cash at
// InitialCapital, and its own per-instance OrderID counter (never shared
// across Optimizer workers, per spec.md §5).
func NewSimulator(cfg Config, strat strategy.Strategy) *Simulator {
	governor := risk.NewManager(cfg.Risk)
	for tag, override := range cfg.StrategyOverrides {
		governor.WithStrategyOverride(tag, override)
	}
	return &Simulator{
		cfg:              cfg,
		strat:            strat,
		execution:        &oms.ExecutionEngine{MakerFeeRate: cfg.MakerFeeRate, TakerFeeRate: cfg.TakerFeeRate, SlippageRate: cfg.SlippageRate},
		governor:         governor,
		cash:             money.FromFloat64(cfg.InitialCapital),
		books:            make(map[bar.Symbol]*oms.OrderBook),
		positions:        oms.NewPositionManager(),
		entryCache:       make(map[bar.Symbol]entryLevels),
		trailTracker:     risk.NewTrailingStopTracker(),
		indicatorEngines: make(map[bar.Symbol]*indicators.Engine),
	}
}

// indicatorEngineFor returns the lazily-created per-symbol Engine,
// seeded with windows wide enough for the Simulator's own Lookback.
func (s *Simulator) indicatorEngineFor(symbol bar.Symbol) *indicators.Engine {
	e, ok := s.indicatorEngines[symbol]
	if !ok {
		e = indicators.NewEngine(10, 30, 14, s.cfg.Lookback)
		s.indicatorEngines[symbol] = e
	}
	return e
}

func (s *Simulator) bookFor(symbol bar.Symbol) *oms.OrderBook {
	b, ok := s.books[symbol]
	if !ok {
		b = oms.NewOrderBook()
		s.books[symbol] = b
	}
	return b
}

// Run replays series (per symbol, all equal length and aligned onto a
// shared timestamp axis — see bar.AlignSymbols) bar by bar, through
// Phase 0 (T+1 dispatch), Phase 1 (fill sweep), Phase 2 (bracket
// evaluation, strategy polling, order emission) and an equity mark, then
// closes any still-open positions and computes performance metrics.
// A zero-length axis returns an empty Result, never an error — per
// spec.md §4.F's failure semantics.
func (s *Simulator) Run(series []bar.AlignedSeries, mtf map[bar.Symbol]*bar.MultiTimeframeView) Result {
	if len(series) == 0 || len(series[0].Candles) == 0 {
		return Result{}
	}
	if err := s.strat.Init(strategy.Context{Cash: s.cash.Float64(), Equity: s.cfg.InitialCapital}); err != nil {
		return Result{}
	}

	n := len(series[0].Candles)
	bySymbol := make(map[bar.Symbol][]bar.Candle, len(series))
	for _, ser := range series {
		bySymbol[ser.Symbol] = ser.Candles
	}

	for i := 0; i < n; i++ {
		now := series[0].Candles[i].Timestamp

		s.runPhaseZero(bySymbol, i, now)
		s.runPhaseOneFillSweep(bySymbol, i, now)
		s.runPhaseTwoBracketsAndOrders(bySymbol, mtf, i, now)
	}

	s.closeRemainingPositions(bySymbol, n-1)

	metrics := calculateMetrics(s.trades, s.equity, s.cfg.InitialCapital, s.cfg.TaxRate)
	return Result{Trades: s.trades, Equity: s.equity, Metrics: metrics}
}

// runPhaseZero dispatches the T+1 deferred queue: each queued order fills
// at this bar's open, adjusted for slippage by side.
func (s *Simulator) runPhaseZero(bySymbol map[bar.Symbol][]bar.Candle, idx int, now time.Time) {
	if !s.cfg.EnableT1 || len(s.deferred) == 0 {
		return
	}

	remaining := s.deferred[:0]
	for _, dq := range s.deferred {
		candles, ok := bySymbol[dq.symbol]
		if !ok || idx >= len(candles) {
			remaining = append(remaining, dq)
			continue
		}
		book := s.bookFor(dq.symbol)
		o := book.Get(dq.orderID)
		if o == nil || !o.IsActive() {
			continue // already gone; drop from queue
		}

		candle := candles[idx]
		price := candle.Open
		if o.Side == oms.Buy {
			price *= 1 + s.cfg.SlippageRate
		} else {
			price *= 1 - s.cfg.SlippageRate
		}

		if o.Side == oms.Buy {
			commission := price * o.RemainingQuantity * s.cfg.TakerFeeRate
			cost := money.FromFloat64(price).MulFloat(o.RemainingQuantity).Add(money.FromFloat64(commission))
			if s.cash.Cmp(cost) < 0 {
				// Buy-side cash guard: skip, order remains queued.
				remaining = append(remaining, dq)
				continue
			}
		}

		fill := s.execution.ExecuteFill(o, price, false, now)
		s.applyFill(dq.symbol, fill, o.Side, now)
		book.MarkFilled(dq.orderID, now)
	}
	s.deferred = remaining
	for sym := range s.books {
		s.books[sym].RemoveTerminal(now)
	}
}

// runPhaseOneFillSweep matches every active resting order against this
// bar's candle.
func (s *Simulator) runPhaseOneFillSweep(bySymbol map[bar.Symbol][]bar.Candle, idx int, now time.Time) {
	for symbol, candles := range bySymbol {
		if idx >= len(candles) {
			continue
		}
		candle := candles[idx]
		book := s.bookFor(symbol)

		ids := book.AllIDs()
		for _, id := range ids {
			o := book.Get(id)
			if o == nil || !o.IsActive() {
				continue
			}
			fillPrice, ok := s.execution.CheckFill(o, candle, idx)
			if !ok {
				continue
			}

			isBracket := o.ClientTag == "Stop" || o.ClientTag == "Target"
			if s.cfg.EnableT1 && isBracket {
				s.deferred = append(s.deferred, deferredOrder{symbol: symbol, orderID: id})
				continue
			}

			if o.Side == oms.Buy {
				commission := fillPrice.Price * o.RemainingQuantity * s.rateFor(fillPrice.IsMaker)
				cost := money.FromFloat64(fillPrice.Price).MulFloat(o.RemainingQuantity).Add(money.FromFloat64(commission))
				if s.cash.Cmp(cost) < 0 {
					continue
				}
			}

			fill := s.execution.ExecuteFill(o, fillPrice.Price, fillPrice.IsMaker, now)
			s.applyFill(symbol, fill, o.Side, now)
			book.MarkFilled(id, now)
		}
		book.RemoveTerminal(now)
	}
}

func (s *Simulator) rateFor(isMaker bool) float64 {
	if isMaker {
		return s.cfg.MakerFeeRate
	}
	return s.cfg.TakerFeeRate
}

// applyFill absorbs a fill into cash and the position ledger, and
// materializes a Trade if the fill closed or reversed a position.
func (s *Simulator) applyFill(symbol bar.Symbol, fill oms.Fill, side oms.Side, now time.Time) {
	existing := s.positions.GetPosition(symbol)
	wasOpen := existing != nil
	var prevSide oms.Side
	var prevAvgEntry, prevQty, prevEntryCommission float64
	var firstEntry time.Time
	if wasOpen {
		prevSide, prevAvgEntry, prevQty, firstEntry = existing.Side, existing.AverageEntry, existing.Quantity, existing.FirstEntryTime
		for _, f := range existing.Fills {
			prevEntryCommission += f.Commission
		}
	}

	s.totalCommission = s.totalCommission.Add(money.FromFloat64(fill.Commission))

	notional := money.FromFloat64(fill.Price).MulFloat(fill.Quantity)
	if side == oms.Buy {
		s.cash = s.cash.Sub(notional).Sub(money.FromFloat64(fill.Commission))
	} else {
		s.cash = s.cash.Add(notional).Sub(money.FromFloat64(fill.Commission))
	}

	s.positions.ApplyFill(fill, symbol, side)
	s.strat.OnOrderFilled(symbol, fill, side)

	after := s.positions.GetPosition(symbol)

	if !wasOpen {
		// Fresh entry: record risk_amount from the cached stop.
		if after != nil {
			if lvl, ok := s.entryCache[symbol]; ok {
				after.SetRiskAmount(absf(fill.Price-lvl.stop) * after.Quantity)
			}
		}
		return
	}

	// Position existed before this fill: it was reduced, closed, or
	// reversed. A Trade materializes only on full close or reversal —
	// spec.md's "if the fill closed or reversed a position" gate — not on
	// a same-side partial reduction, which just shrinks the open position.
	if after != nil && after.Side == prevSide {
		return
	}
	closedQty := prevQty

	gross := closedQty * (fill.Price - prevAvgEntry)
	if prevSide == oms.Sell {
		gross = closedQty * (prevAvgEntry - fill.Price)
	}
	// Entry commission of the entry fills the position still held (all of
	// which this close or reversal consumes, so closedQty == prevQty), plus this exit's
	// commission — the Go analog of spec.md's "Σ fills.commission +
	// exit commission" trade-construction rule.
	entryShare := prevEntryCommission
	if prevQty > 0 {
		entryShare = prevEntryCommission * (closedQty / prevQty)
	}
	commission := entryShare + fill.Commission
	net := gross - commission

	s.trades = append(s.trades, Trade{
		Symbol:     symbol,
		Side:       prevSide,
		Quantity:   closedQty,
		EntryPrice: prevAvgEntry,
		ExitPrice:  fill.Price,
		EntryTime:  firstEntry,
		ExitTime:   now,
		GrossPnL:   gross,
		Commission: commission,
		NetPnL:     net,
	})

	if net >= 0 {
		s.governor.RecordWin()
	} else {
		s.governor.RecordLoss()
	}
	s.strat.OnTradeClosed(symbol, net)

	if after == nil || after.Side != prevSide {
		delete(s.entryCache, symbol)
		s.trailTracker.Untrack(string(symbol))
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// runPhaseTwoBracketsAndOrders ratchets/triggers brackets, polls the
// strategy, emits new orders, and then marks equity.
func (s *Simulator) runPhaseTwoBracketsAndOrders(bySymbol map[bar.Symbol][]bar.Candle, mtf map[bar.Symbol]*bar.MultiTimeframeView, idx int, now time.Time) {
	marks := make(map[bar.Symbol]float64, len(bySymbol))

	symbols := make([]bar.Symbol, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	for _, symbol := range symbols {
		candles := bySymbol[symbol]
		if idx >= len(candles) {
			continue
		}
		candle := candles[idx]

		start := idx - s.cfg.Lookback + 1
		if start < 0 {
			start = 0
		}
		history := candles[start : idx+1]
		marks[symbol] = candle.Close
		s.indicatorEngineFor(symbol).Update(string(symbol), candle.Close)

		pos := s.positions.GetPosition(symbol)
		if pos != nil {
			pos.UpdateUnrealizedPnL(candle.Close)

			if s.evaluateBracket(symbol, pos, history, candle, idx, now) {
				continue
			}
		}

		var views *bar.MultiTimeframeView
		if full := mtf[symbol]; full != nil {
			views = bar.NewMultiTimeframeView(full.Primary)
			for _, name := range full.Timeframes() {
				tfCandles, _ := full.Get(name)
				views.AddTimeframe(name, bar.AlignSecondary(tfCandles, candle, s.cfg.Lookback))
			}
		}
		ctx := strategy.Context{
			Views:      views,
			Indicators: s.indicatorEngineFor(symbol),
			Position:   pos,
			OpenOrders: s.bookFor(symbol).AllOrders(),
			Cash:       s.cash.Float64(),
			Equity:     s.lastEquity(),
		}
		if err := s.strat.OnBar(ctx, symbol, history); err != nil {
			continue
		}
		requests := s.strat.GenerateOrders(ctx, symbol, history)
		for _, req := range requests {
			s.processOrderRequest(req, symbol, history, candle, idx, now)
		}
	}

	// Mark equity once every symbol's bracket exits and immediate fills for
	// this bar have settled: cash plus each open position at this bar's close.
	totalValue := s.cash
	for symbol, p := range s.positions.GetAllPositions() {
		if price, ok := marks[symbol]; ok {
			totalValue = totalValue.Add(money.FromFloat64(price).MulFloat(p.Quantity))
		}
	}

	s.governor.UpdateCapital(totalValue.Float64())
	s.equity = append(s.equity, EquityPoint{Timestamp: now, TotalValue: totalValue.Float64()})
	s.checkInvariants(marks, totalValue)
}

// lastEquity returns the most recently marked equity point's total value,
// or InitialCapital before the first bar's mark — the last fully-known
// portfolio value, so Context.Equity never reflects a partially-processed
// bar's running total across symbols.
func (s *Simulator) lastEquity() float64 {
	if len(s.equity) == 0 {
		return s.cfg.InitialCapital
	}
	return s.equity[len(s.equity)-1].TotalValue
}

// evaluateBracket fixes the entry-level cache lazily, ratchets the
// trailing stop, and triggers a synthetic close if stop/target was hit
// this bar. Returns true if a bracket fired and the symbol should be
// skipped for fresh order emission this bar.
func (s *Simulator) evaluateBracket(symbol bar.Symbol, pos *oms.Position, history []bar.Candle, candle bar.Candle, idx int, now time.Time) bool {
	lvl, ok := s.entryCache[symbol]
	if !ok {
		entrySlice := sliceEndingAt(history, pos.FirstEntryTime)
		stop := s.strat.CalculateStopLoss(symbol, pos.Side, pos.AverageEntry, entrySlice)
		target := s.strat.CalculateTakeProfit(symbol, pos.Side, pos.AverageEntry, entrySlice)
		lvl = entryLevels{stop: stop, target: target}
		s.entryCache[symbol] = lvl
	}

	activeStop := lvl.stop
	if newTrail, ok := s.strat.UpdateTrailingStop(symbol, pos, history); ok {
		activeStop = s.trailTracker.Ratchet(string(symbol), pos.Side == oms.Buy, newTrail)
	} else if trail, ok := s.trailTracker.Stop(string(symbol)); ok {
		activeStop = trail
	}

	var stopHit, targetHit bool
	if pos.Side == oms.Buy {
		stopHit = candle.Close <= activeStop
		targetHit = candle.High >= lvl.target
	} else {
		stopHit = candle.Close >= activeStop
		targetHit = candle.Low <= lvl.target
	}
	if !stopHit && !targetHit {
		return false
	}

	// Target takes precedence when a bar's range hits both the stop and
	// the target in the same bar — spec.md §8's documented policy.
	tag := "Stop"
	trigger := activeStop
	if targetHit {
		tag = "Target"
		trigger = lvl.target
	}

	closeSide := pos.Side.Opposite()
	if s.cfg.EnableT1 {
		id := s.ids.Next()
		o := oms.NewOrder(id, symbol, closeSide, oms.Market, pos.Quantity, nil, nil, oms.GTC, tag, now)
		s.bookFor(symbol).Add(o, now)
		s.deferred = append(s.deferred, deferredOrder{symbol: symbol, orderID: id})
		return true
	}

	// Gap-through only overrides the trigger price when the open crossed
	// it in the direction that's adverse for a Stop (price gapped further
	// past the protective level) or favorable for a Target (price gapped
	// further past the profit level); otherwise the fill is at the
	// trigger itself, since the level was only touched intrabar.
	execPrice := trigger
	gappedThrough := false
	switch {
	case tag == "Stop" && closeSide == oms.Sell:
		gappedThrough = candle.Open < trigger
	case tag == "Stop" && closeSide == oms.Buy:
		gappedThrough = candle.Open > trigger
	case tag == "Target" && closeSide == oms.Sell:
		gappedThrough = candle.Open > trigger
	case tag == "Target" && closeSide == oms.Buy:
		gappedThrough = candle.Open < trigger
	}
	if gappedThrough {
		execPrice = candle.Open
	}
	if closeSide == oms.Sell {
		execPrice *= 1 - s.cfg.SlippageRate
	} else {
		execPrice *= 1 + s.cfg.SlippageRate
	}

	commission := execPrice * pos.Quantity * s.cfg.TakerFeeRate
	fill := oms.Fill{Price: execPrice, Quantity: pos.Quantity, Timestamp: now, Commission: commission, IsMaker: false}
	s.applyFill(symbol, fill, closeSide, now)
	return true
}

// sliceEndingAt binary-searches history for the bar matching ts and
// returns the slice up to and including it, preserving no-lookahead.
func sliceEndingAt(history []bar.Candle, ts time.Time) []bar.Candle {
	idx := sort.Search(len(history), func(i int) bool { return !history[i].Timestamp.Before(ts) })
	if idx >= len(history) {
		return history
	}
	return history[:idx+1]
}

func (s *Simulator) processOrderRequest(req strategy.OrderRequest, symbol bar.Symbol, history []bar.Candle, candle bar.Candle, idx int, now time.Time) {
	pos := s.positions.GetPosition(symbol)
	isEntry := pos == nil

	if isEntry {
		if s.governor.ShouldHaltTrading() || !s.governor.CanOpenPositionForStrategy(s.strat.Name(), s.positions.OpenPositionCount()) {
			return
		}
		regimeScore := s.strat.GetRegimeScore(symbol, history)
		stop := s.strat.CalculateStopLoss(symbol, req.Side, candle.Close, history)
		target := s.strat.CalculateTakeProfit(symbol, req.Side, candle.Close, history)

		size := s.governor.CalculatePositionSizeForStrategy(s.strat.Name(), candle.Close, stop, s.openRiskViews(), regimeScore)
		if size <= 0 {
			return
		}
		req.Quantity = size

		if s.cfg.EnableT1 {
			s.entryCache[symbol] = entryLevels{stop: stop, target: target}
		}
	}

	id := s.ids.Next()
	switch req.Type {
	case oms.Market:
		if s.cfg.EnableT1 && isEntry {
			o := oms.NewOrder(id, symbol, req.Side, oms.Market, req.Quantity, nil, nil, oms.GTC, req.Note, now)
			barIdx := idx
			o.CreatedBarIndex = &barIdx
			s.bookFor(symbol).Add(o, now)
			s.deferred = append(s.deferred, deferredOrder{symbol: symbol, orderID: id})
			return
		}
		execPrice := candle.Close
		if req.Side == oms.Buy {
			execPrice *= 1 + s.cfg.SlippageRate
		} else {
			execPrice *= 1 - s.cfg.SlippageRate
		}
		if req.Side == oms.Buy {
			commission := execPrice * req.Quantity * s.cfg.TakerFeeRate
			cost := money.FromFloat64(execPrice).MulFloat(req.Quantity).Add(money.FromFloat64(commission))
			if s.cash.Cmp(cost) < 0 {
				return
			}
		}
		commission := execPrice * req.Quantity * s.cfg.TakerFeeRate
		fill := oms.Fill{Price: execPrice, Quantity: req.Quantity, Timestamp: now, Commission: commission, IsMaker: false}
		s.applyFill(symbol, fill, req.Side, now)

	default:
		o := oms.NewOrder(id, symbol, req.Side, req.Type, req.Quantity, req.LimitPrice, req.StopPrice, oms.GTC, req.Note, now)
		barIdx := idx
		o.CreatedBarIndex = &barIdx
		s.bookFor(symbol).Add(o, now)
	}
}

// openRiskViews snapshots open positions' risk_amount for the governor's
// portfolio-heat check.
func (s *Simulator) openRiskViews() []risk.PositionRiskView {
	positions := s.positions.GetAllPositions()
	out := make([]risk.PositionRiskView, 0, len(positions))
	for _, p := range positions {
		out = append(out, risk.PositionRiskView{RiskAmount: p.RiskAmount})
	}
	return out
}

// closeRemainingPositions closes every still-open position at the final
// bar's close, for end-of-run cleanup.
func (s *Simulator) closeRemainingPositions(bySymbol map[bar.Symbol][]bar.Candle, lastIdx int) {
	for symbol, pos := range s.positions.GetAllPositions() {
		candles := bySymbol[symbol]
		if lastIdx < 0 || lastIdx >= len(candles) {
			continue
		}
		last := candles[lastIdx]
		closeSide := pos.Side.Opposite()
		commission := last.Close * pos.Quantity * s.cfg.TakerFeeRate
		fill := oms.Fill{Price: last.Close, Quantity: pos.Quantity, Timestamp: last.Timestamp, Commission: commission, IsMaker: false}
		s.applyFill(symbol, fill, closeSide, last.Timestamp)
	}
}

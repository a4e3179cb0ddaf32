package ledger_test

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/ledger"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
	"github.com/josh-wjp/hodlbot-engine/internal/rules"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestLedger(t *testing.T, balance float64) *ledger.Ledger {
	t.Helper()
	return ledger.New(d(balance), rules.NewValidator(d(10)))
}

func buy(t *testing.T, lg *ledger.Ledger, coin string, qty, price float64) *model.Transaction {
	t.Helper()
	tx, err := lg.ExecuteTrade(model.TradeRequest{
		Type: model.Buy, Coin: coin, Quantity: d(qty), Price: d(price),
	})
	if err != nil {
		t.Fatalf("buy %s %v@%v failed: %v", coin, qty, price, err)
	}
	return tx
}

func sell(t *testing.T, lg *ledger.Ledger, coin string, qty, price float64) *model.Transaction {
	t.Helper()
	tx, err := lg.ExecuteTrade(model.TradeRequest{
		Type: model.Sell, Coin: coin, Quantity: d(qty), Price: d(price),
	})
	if err != nil {
		t.Fatalf("sell %s %v@%v failed: %v", coin, qty, price, err)
	}
	return tx
}

// checkPnLConsistency recomputes realized P&L from the transaction log and
// compares it against the per-coin totals the ledger reports.
func checkPnLConsistency(t *testing.T, lg *ledger.Ledger) {
	t.Helper()
	fromLog := decimal.Zero
	for _, tx := range lg.Transactions() {
		if tx.Type == model.Sell {
			fromLog = fromLog.Add(tx.RealizedProfit)
		}
	}
	if !lg.TotalRealizedPnL().Equal(fromLog) {
		t.Errorf("realized P&L drift: ledger=%s log=%s", lg.TotalRealizedPnL(), fromLog)
	}
}

func TestExecuteTrade_BuyScenario(t *testing.T) {
	lg := newTestLedger(t, 100)

	tx := buy(t, lg, "X", 1, 10)

	if !lg.CashBalance().Equal(d(90)) {
		t.Errorf("expected cash 90, got %s", lg.CashBalance())
	}
	h, ok := lg.Holding("X")
	if !ok {
		t.Fatal("expected holding for X")
	}
	if !h.Quantity.Equal(d(1)) || !h.AverageCost.Equal(d(10)) {
		t.Errorf("expected qty 1 @ avg 10, got %s @ %s", h.Quantity, h.AverageCost)
	}
	if !tx.RealizedProfit.IsZero() {
		t.Errorf("buy should realize nothing, got %s", tx.RealizedProfit)
	}
	if tx.Coin != "x" {
		t.Errorf("coin should be case-normalized, got %q", tx.Coin)
	}
}

func TestExecuteTrade_SellAtLossRejected(t *testing.T) {
	lg := newTestLedger(t, 100)
	buy(t, lg, "x", 1, 10)

	before := lg.Snapshot()

	_, err := lg.ExecuteTrade(model.TradeRequest{
		Type: model.Sell, Coin: "x", Quantity: d(1), Price: d(9),
	})
	reason, ok := rules.ReasonOf(err)
	if !ok || reason != rules.ReasonUnprofitableSale {
		t.Fatalf("expected UNPROFITABLE_SALE, got %v", err)
	}

	// All-or-nothing: rejection leaves state byte-for-byte unchanged.
	after := lg.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rejected trade mutated state:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestExecuteTrade_ProfitableSellClosesPosition(t *testing.T) {
	lg := newTestLedger(t, 100)
	buy(t, lg, "x", 1, 10)

	tx := sell(t, lg, "x", 1, 15)

	if !lg.CashBalance().Equal(d(105)) {
		t.Errorf("expected cash 105, got %s", lg.CashBalance())
	}
	if !tx.RealizedProfit.Equal(d(5)) {
		t.Errorf("expected realized profit 5, got %s", tx.RealizedProfit)
	}
	if _, ok := lg.Holding("x"); ok {
		t.Error("fully closed position should be removed from holdings")
	}
	if pnl := lg.RealizedPnL()["x"]; !pnl.Equal(d(5)) {
		t.Errorf("expected per-coin P&L 5, got %s", pnl)
	}
	checkPnLConsistency(t, lg)
}

func TestExecuteTrade_BelowMinimumNotional(t *testing.T) {
	lg := newTestLedger(t, 100)

	_, err := lg.ExecuteTrade(model.TradeRequest{
		Type: model.Buy, Coin: "x", Quantity: d(1), Price: d(5),
	})
	reason, ok := rules.ReasonOf(err)
	if !ok || reason != rules.ReasonBelowMinimumNotional {
		t.Fatalf("expected BELOW_MINIMUM_NOTIONAL, got %v", err)
	}
	if !lg.CashBalance().Equal(d(100)) {
		t.Errorf("cash changed on rejection: %s", lg.CashBalance())
	}
}

func TestExecuteTrade_AverageCostReweighting(t *testing.T) {
	lg := newTestLedger(t, 1000)

	// Buys (1,10), (2,13): avg = (1×10 + 2×13) / 3 = 12.
	buy(t, lg, "x", 1, 10)
	buy(t, lg, "x", 2, 13)

	h, _ := lg.Holding("x")
	if !h.Quantity.Equal(d(3)) {
		t.Errorf("expected qty 3, got %s", h.Quantity)
	}
	if !h.AverageCost.Equal(d(12)) {
		t.Errorf("expected avg cost 12, got %s", h.AverageCost)
	}

	// Selling leaves average cost untouched.
	sell(t, lg, "x", 1, 20)
	h, _ = lg.Holding("x")
	if !h.Quantity.Equal(d(2)) || !h.AverageCost.Equal(d(12)) {
		t.Errorf("sell must not change avg cost: qty=%s avg=%s", h.Quantity, h.AverageCost)
	}
	checkPnLConsistency(t, lg)
}

func TestExecuteTrade_AverageCostResetsAfterFullClose(t *testing.T) {
	lg := newTestLedger(t, 1000)

	buy(t, lg, "x", 1, 10)
	sell(t, lg, "x", 1, 20)

	// New position after a full close starts a fresh cost basis.
	buy(t, lg, "x", 1, 30)
	h, _ := lg.Holding("x")
	if !h.AverageCost.Equal(d(30)) {
		t.Errorf("expected fresh avg cost 30, got %s", h.AverageCost)
	}
}

func TestExecuteTrade_CashConservation(t *testing.T) {
	lg := newTestLedger(t, 500)

	before := lg.CashBalance()
	buy(t, lg, "x", 2, 25) // notional 50
	if !lg.CashBalance().Equal(before.Sub(d(50))) {
		t.Errorf("buy conservation violated: %s", lg.CashBalance())
	}

	before = lg.CashBalance()
	sell(t, lg, "x", 2, 30) // notional 60
	if !lg.CashBalance().Equal(before.Add(d(60))) {
		t.Errorf("sell conservation violated: %s", lg.CashBalance())
	}
}

func TestExecuteTrade_SequenceAndOrder(t *testing.T) {
	lg := newTestLedger(t, 1000)

	buy(t, lg, "a", 1, 10)
	buy(t, lg, "b", 1, 20)
	sell(t, lg, "a", 1, 15)

	txs := lg.Transactions()
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i, tx := range txs {
		if tx.Seq != int64(i+1) {
			t.Errorf("expected seq %d at position %d, got %d", i+1, i, tx.Seq)
		}
		if tx.ID == "" {
			t.Error("expected non-empty transaction id")
		}
		if tx.Timestamp.IsZero() {
			t.Error("expected non-zero timestamp")
		}
	}
}

func TestExecuteTrade_InvalidCoin(t *testing.T) {
	lg := newTestLedger(t, 100)

	_, err := lg.ExecuteTrade(model.TradeRequest{
		Type: model.Buy, Coin: "  ", Quantity: d(1), Price: d(10),
	})
	if err == nil {
		t.Fatal("expected error for blank coin")
	}
	if len(lg.Transactions()) != 0 {
		t.Error("no transaction should be recorded on input error")
	}
}

func TestExecuteTrade_CaseNormalizedLookups(t *testing.T) {
	lg := newTestLedger(t, 100)

	buy(t, lg, "Bitcoin", 1, 50)
	if _, ok := lg.Holding("BITCOIN"); !ok {
		t.Error("holdings lookup should be case-insensitive")
	}
	sell(t, lg, "bitcoin", 1, 60)
	if _, ok := lg.Holding("bitcoin"); ok {
		t.Error("position should be closed")
	}
	checkPnLConsistency(t, lg)
}

func TestExecuteTrade_NoLossTransactionsEver(t *testing.T) {
	lg := newTestLedger(t, 1000)

	buy(t, lg, "x", 3, 10)
	sell(t, lg, "x", 1, 11)
	sell(t, lg, "x", 1, 30)

	// Attempt a set of losing sells; all must be rejected.
	for _, price := range []float64{1, 5, 9.99, 10} {
		_, err := lg.ExecuteTrade(model.TradeRequest{
			Type: model.Sell, Coin: "x", Quantity: d(1), Price: d(price),
		})
		if reason, ok := rules.ReasonOf(err); !ok || reason != rules.ReasonUnprofitableSale {
			t.Errorf("sell at %v should be UNPROFITABLE_SALE, got %v", price, err)
		}
	}

	for _, tx := range lg.Transactions() {
		if tx.RealizedProfit.IsNegative() {
			t.Errorf("transaction %d realized a loss: %s", tx.Seq, tx.RealizedProfit)
		}
	}
	checkPnLConsistency(t, lg)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	lg := newTestLedger(t, 100)
	buy(t, lg, "x", 2, 10)
	sell(t, lg, "x", 1, 20)

	snap := lg.Snapshot()

	restored := newTestLedger(t, 0)
	restored.Restore(snap)

	if !restored.CashBalance().Equal(lg.CashBalance()) {
		t.Errorf("cash mismatch: %s vs %s", restored.CashBalance(), lg.CashBalance())
	}
	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Error("restored snapshot differs from original")
	}

	// The restored ledger keeps trading with continuous sequence numbers.
	tx := buy(t, restored, "y", 1, 30)
	if tx.Seq != 3 {
		t.Errorf("expected seq 3 after restore, got %d", tx.Seq)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	lg := newTestLedger(t, 100)
	buy(t, lg, "x", 1, 10)

	snap := lg.Snapshot()
	snap.Holdings["x"] = model.Holding{Quantity: d(999), AverageCost: d(1)}
	snap.CashBalance = d(0)

	h, _ := lg.Holding("x")
	if !h.Quantity.Equal(d(1)) {
		t.Error("mutating a snapshot must not affect the ledger")
	}
	if !lg.CashBalance().Equal(d(90)) {
		t.Error("mutating a snapshot must not affect the cash balance")
	}
}

package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateLineTotals(t *testing.T) {
	subtotal, total := CalculateLineTotals(4, 25, 10, 5)
	// 4*25=100, minus 10% discount = 90, plus 5% tax on the net = 94.5
	require.InDelta(t, 90.0, subtotal, 1e-9)
	require.InDelta(t, 94.5, total, 1e-9)
}

func TestCalculateLineTotalsNoModifiers(t *testing.T) {
	subtotal, total := CalculateLineTotals(3, 12.5, 0, 0)
	require.InDelta(t, 37.5, subtotal, 1e-9)
	require.InDelta(t, 37.5, total, 1e-9)
}

func TestComputeTotals(t *testing.T) {
	items := []LineItem{{Total: 100}, {Total: 50}}
	payments := []Payment{{Amount: 60}}

	grand, paid, due := ComputeTotals(items, payments)
	require.InDelta(t, 150.0, grand, 1e-9)
	require.InDelta(t, 60.0, paid, 1e-9)
	require.InDelta(t, 90.0, due, 1e-9)
}

func TestComputeTotalsOverpaymentFloorsDue(t *testing.T) {
	items := []LineItem{{Total: 80}}
	payments := []Payment{{Amount: 100}}

	grand, paid, due := ComputeTotals(items, payments)
	require.InDelta(t, 80.0, grand, 1e-9)
	require.InDelta(t, 100.0, paid, 1e-9)
	require.Zero(t, due)
}

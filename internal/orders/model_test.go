package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{StatusPendiente, StatusAprobado, true},
		{StatusAprobado, StatusEnPreparacion, true},
		{StatusEnPreparacion, StatusFacturado, true},
		{StatusFacturado, StatusEnRuta, true},
		{StatusEnRuta, StatusEntregado, true},

		// Skipping ahead in the chain is never allowed.
		{StatusPendiente, StatusEnPreparacion, false},
		{StatusPendiente, StatusEntregado, false},
		{StatusAprobado, StatusFacturado, false},
		{StatusFacturado, StatusEntregado, false},

		// No backward moves.
		{StatusAprobado, StatusPendiente, false},
		{StatusEnRuta, StatusFacturado, false},

		// Side exits from any non-terminal state.
		{StatusPendiente, StatusAnulado, true},
		{StatusPendiente, StatusRechazado, true},
		{StatusEnRuta, StatusAnulado, true},
		{StatusFacturado, StatusRechazado, true},

		// Terminal states accept nothing.
		{StatusEntregado, StatusAnulado, false},
		{StatusAnulado, StatusAprobado, false},
		{StatusRechazado, StatusPendiente, false},
		{StatusEntregado, StatusEntregado, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusEntregado.Terminal())
	assert.True(t, StatusAnulado.Terminal())
	assert.True(t, StatusRechazado.Terminal())
	assert.False(t, StatusPendiente.Terminal())
	assert.False(t, StatusEnRuta.Terminal())
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, StatusFacturado.Valid())
	assert.False(t, OrderStatus("SHIPPED").Valid())
	assert.False(t, OrderStatus("").Valid())
}

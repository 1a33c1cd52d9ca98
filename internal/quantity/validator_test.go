package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		requested int
		stock     int
		minimum   int
		expected  Outcome
	}{
		{name: "Accepted - within bounds", requested: 3, stock: 5, minimum: 1, expected: Outcome{Verdict: Accepted, Quantity: 3}},
		{name: "Accepted - equals stock", requested: 5, stock: 5, minimum: 1, expected: Outcome{Verdict: Accepted, Quantity: 5}},
		{name: "Accepted - equals minimum", requested: 1, stock: 5, minimum: 1, expected: Outcome{Verdict: Accepted, Quantity: 1}},
		{name: "ExceedsStock - one over", requested: 6, stock: 5, minimum: 1, expected: Outcome{Verdict: ExceedsStock}},
		{name: "ExceedsStock - zero stock", requested: 1, stock: 0, minimum: 1, expected: Outcome{Verdict: ExceedsStock}},
		{name: "BelowMinimum - zero", requested: 0, stock: 5, minimum: 1, expected: Outcome{Verdict: BelowMinimum}},
		{name: "BelowMinimum - negative", requested: -3, stock: 5, minimum: 1, expected: Outcome{Verdict: BelowMinimum}},
		{name: "BelowMinimum - wins over zero stock", requested: 0, stock: 0, minimum: 1, expected: Outcome{Verdict: BelowMinimum}},
		{name: "BelowMinimum - custom minimum", requested: 2, stock: 10, minimum: 3, expected: Outcome{Verdict: BelowMinimum}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			got := Validate(tc.requested, tc.stock, tc.minimum)

			// then
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.expected.Verdict == Accepted, got.Accepted())
		})
	}
}

func Test_Validate_IsDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, Validate(4, 5, DefaultMinimum), Validate(4, 5, DefaultMinimum))
	}
}

func Test_Verdict_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "below_minimum", BelowMinimum.String())
	assert.Equal(t, "exceeds_stock", ExceedsStock.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}

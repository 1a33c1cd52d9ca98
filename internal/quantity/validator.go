// Package quantity checks requested line quantities against stock and the minimum order size.
package quantity

// DefaultMinimum is the smallest quantity a line can hold.
const DefaultMinimum = 1

// Verdict is the result category of Validate.
type Verdict int

const (
	Accepted Verdict = iota
	BelowMinimum
	ExceedsStock
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case BelowMinimum:
		return "below_minimum"
	case ExceedsStock:
		return "exceeds_stock"
	default:
		return "unknown"
	}
}

// Outcome carries the verdict and, when accepted, the quantity to apply.
type Outcome struct {
	Verdict  Verdict
	Quantity int
}

// Accepted reports whether the request may proceed as a quantity write.
func (o Outcome) Accepted() bool {
	return o.Verdict == Accepted
}

// Validate classifies requested against [minimum, stock].
// BelowMinimum is checked first: it routes to removal even when stock is zero.
func Validate(requested, stock, minimum int) Outcome {
	switch {
	case requested < minimum:
		return Outcome{Verdict: BelowMinimum}
	case requested > stock:
		return Outcome{Verdict: ExceedsStock}
	default:
		return Outcome{Verdict: Accepted, Quantity: requested}
	}
}

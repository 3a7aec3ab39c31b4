package rolling

import "github.com/shopspring/decimal"

// StdDev is a rolling population standard deviation over the last N
// observations.
type StdDev struct {
	size   int
	values []decimal.Decimal
	head   int
	count  int
	mean   *Mean
}

// NewStdDev creates a rolling standard deviation over a window of size
// observations.
func NewStdDev(size int) *StdDev {
	if size < 1 {
		size = 1
	}
	return &StdDev{
		size:   size,
		values: make([]decimal.Decimal, size),
		mean:   NewMean(size),
	}
}

// Add pushes an observation, evicting the oldest once the window is full.
func (s *StdDev) Add(v decimal.Decimal) {
	if s.count < s.size {
		s.count++
	}
	s.values[s.head] = v
	s.head = (s.head + 1) % s.size
	s.mean.Add(v)
}

// Value returns the population standard deviation of the observations
// currently in the window, or zero when no observation has been added.
func (s *StdDev) Value() decimal.Decimal {
	if s.count == 0 {
		return decimal.Zero
	}
	mean := s.mean.Value()
	sumSq := decimal.Zero
	for i := 0; i < s.count; i++ {
		diff := s.values[i].Sub(mean)
		sumSq = sumSq.Add(diff.Mul(diff))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(s.count)))
	return sqrt(variance)
}

// Mean returns the rolling mean over the same window.
func (s *StdDev) Mean() decimal.Decimal { return s.mean.Value() }

// Full reports whether the window holds size observations.
func (s *StdDev) Full() bool { return s.count == s.size }

// Reset discards all observations.
func (s *StdDev) Reset() {
	s.head = 0
	s.count = 0
	s.mean.Reset()
}

const sqrtEpsilon = "0.00000001"

// sqrt computes a square root by Newton's method; decimal has no native
// root operation.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	two := decimal.NewFromInt(2)
	eps := decimal.RequireFromString(sqrtEpsilon)

	guess := d.Div(two)
	if guess.IsZero() {
		guess = decimal.NewFromInt(1)
	}
	for i := 0; i < 100; i++ {
		next := guess.Add(d.Div(guess)).Div(two)
		if next.Sub(guess).Abs().LessThan(eps) {
			return next.Round(8)
		}
		guess = next
	}
	return guess.Round(8)
}

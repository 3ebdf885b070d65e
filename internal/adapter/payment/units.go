package payment

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReferencePrefix starts every generated charge reference.
const DefaultReferencePrefix = "AGRILINK"

const referenceRandomSpace = 1_000_000

// ToMinorUnits converts a major unit amount to minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// FromMinorUnits converts minor units back to a major unit amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// ReferenceGenerator produces `<prefix>-<millis>-<random>` references.
// The millisecond part is strictly increasing for one generator.
type ReferenceGenerator struct {
	prefix string
	last   atomic.Int64
	now    func() time.Time
}

// NewReferenceGenerator creates a generator using prefix, or DefaultReferencePrefix when empty.
func NewReferenceGenerator(prefix string) *ReferenceGenerator {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	return &ReferenceGenerator{prefix: prefix, now: time.Now}
}

// Next returns a fresh reference.
func (g *ReferenceGenerator) Next() string {
	ms := g.tick()
	return g.prefix + "-" + strconv.FormatInt(ms, 10) + "-" + strconv.Itoa(rand.IntN(referenceRandomSpace))
}

func (g *ReferenceGenerator) tick() int64 {
	for {
		prev := g.last.Load()
		next := max(g.now().UnixMilli(), prev+1)
		if g.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Prefix returns the reference prefix.
func (g *ReferenceGenerator) Prefix() string {
	return g.prefix
}

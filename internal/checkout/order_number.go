package checkout

import (
	"fmt"
	"math/rand"
	"time"
)

// OrderNumberGenerator produces human-readable order numbers of the form
// prefix + unix milliseconds + three zero-padded random digits. Uniqueness is
// probabilistic; storage enforces it and callers retry on conflict.
type OrderNumberGenerator struct {
	prefix string
	now    func() time.Time
	intn   func(n int) int
}

// NewOrderNumberGenerator returns a generator using the wall clock.
func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	return &OrderNumberGenerator{
		prefix: prefix,
		now:    time.Now,
		intn:   rand.Intn,
	}
}

// Next returns a fresh order number.
func (g *OrderNumberGenerator) Next() string {
	return fmt.Sprintf("%s%d%03d", g.prefix, g.now().UnixMilli(), g.intn(1000))
}

package scoring

import (
	"math/rand"
	"sync"
	"time"
)

// lockedSource безопасен для конкурентного использования воркерами.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource: seed == 0 означает посев от текущего времени.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// FixedSource всегда возвращает одно и то же значение.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

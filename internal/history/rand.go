package history

import "github.com/MichaelTJones/pcg"

// SeededRand is a deterministic PCG source; the same seed gives the same
// shuffle order.
type SeededRand struct {
	r *pcg.PCG32
}

func NewRand(seed uint64) *SeededRand {
	r := pcg.NewPCG32()
	r.Seed(seed, 0xda3e39cb94b95bdb)
	return &SeededRand{r: r}
}

// Float64 returns a value in [0, 1)
func (s *SeededRand) Float64() float64 {
	return float64(s.r.Random()) / (1 << 32)
}

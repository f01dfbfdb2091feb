package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// Simulated produces plausible indoor readings that follow a daily cycle
// plus seeded noise. Two sources with the same seed read the same values at
// the same instant.
type Simulated struct {
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulated(seed uint64) *Simulated {
	return &Simulated{now: time.Now, rng: rand.New(rand.NewPCG(seed, seed^0x5eed))}
}

func (s *Simulated) Read(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	secs := float64(t.Hour()*3600 + t.Minute()*60 + t.Second())
	phase := 2 * math.Pi * secs / 86400
	temp := 21 + 2*math.Sin(phase-math.Pi/2) + s.noise(0.1)

	return types.Measurement{
		Humidity:         clamp(48-4*math.Sin(phase-math.Pi/2)+s.noise(0.5), 0, 100),
		Pressure:         1013.25 + 3*math.Sin(phase/2) + s.noise(0.05),
		TempFromHumidity: temp,
		TempFromPressure: temp - 0.4 + s.noise(0.05),
	}, nil
}

func (s *Simulated) Close() error { return nil }

func (s *Simulated) noise(scale float64) float64 {
	return (s.rng.Float64()*2 - 1) * scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

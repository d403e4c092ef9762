package materials

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/notargets/goheat/thomas"
	"github.com/notargets/goheat/utils"
)

// Model is a material together with the cooling path it travels along
type Model interface {
	thomas.Material
	PathLength() float64 // m
}

const (
	TSolidus  = 1679.   // K
	TLiquidus = 1738.   // K
	Latent    = 272000. // J/kg
	CLiquid   = 710.    // J/(kg K)

	DefaultSpeed = 0.75 / 60 // m/s
)

// Property tables for steel over temperature, K
var (
	tableTemps = []float64{273, 373, 473, 573, 673, 773, 873,
		973, 1073, 1173, 1273, 1373, 1473, 1679, 1682, 1800}
	tableLambdas = []float64{ // W/(m K)
		52.56057, 51.35258, 49.16971, 46.22939, 42.74907, 38.94618, 35.03819,
		31.24254, 24.06517, 25.37233, 26.95363, 28.32515, 29.40302, 31.62343,
		28.0, 28.0}
	tableDensities = []float64{ // kg/m^3
		7885.884, 7845.138, 7804.392, 7763.646, 7722.9, 7682.901, 7647.512, 7621.141,
		7631.934, 7572.359, 7512.151, 7453.459, 7398.322, 7190.562, 7000.0, 7000.0}
)

// Solid state transformation peaks of the specific heat, carbon fraction 0.7
var (
	peakTemps  = [4]float64{1000, 1033, 923, 1033}
	peakWidths = [4]float64{70, 350, 1100, 170}
	peakHeats  [4]float64
)

func init() {
	const x = 0.7
	peakHeats = [4]float64{
		4.5141 * (44076 - 85622*x*x + 50357*x) / peakWidths[0],
		4.5141 * (5163.2 - 74009*x*x + 70232*x) / peakWidths[1],
		4.5141 * (2622.3 - 92590*x*x + 80523*x) / peakWidths[2],
		4.5141 * (14775 + 154544*x*x - 142489*x) / peakWidths[3],
	}
}

// CoolingZone is one stretch of the casting path with fixed surface exchange
type CoolingZone struct {
	Length    float64 // m
	Alpha     float64 // Convective coefficient, W/(m^2 K)
	Radiating bool
}

var DefaultZones = []CoolingZone{
	{Length: 0.4, Alpha: 2100},
	{Length: 0.4, Alpha: 60},
	{Length: 0.47, Alpha: 850},
	{Length: 0.95, Alpha: 120},
	{Length: 1.51, Alpha: 40},
	{Length: 18.97, Alpha: 25, Radiating: true},
}

const Emissivity = 3.2e-8 // Radiative coefficient past the spray zones

type Steel struct {
	Speed    float64
	Zones    []CoolingZone
	Delta    float64 // Perturbation for the latent heat release derivative, K
	envT     float64
	envT4    float64
	lambda   interp.PiecewiseLinear
	density  interp.PiecewiseLinear
	zoneEnds []float64
}

func NewSteel(speed, envT float64) (s *Steel, err error) {
	if speed <= 0 {
		err = fmt.Errorf("casting speed must be positive, have %g", speed)
		return
	}
	s = &Steel{
		Speed: speed,
		Zones: DefaultZones,
		Delta: 0.5,
		envT:  envT,
		envT4: utils.POW(envT, 4),
	}
	if err = s.lambda.Fit(tableTemps, tableLambdas); err != nil {
		return nil, fmt.Errorf("conductivity table: %w", err)
	}
	if err = s.density.Fit(tableTemps, tableDensities); err != nil {
		return nil, fmt.Errorf("density table: %w", err)
	}
	var end float64
	for _, z := range s.Zones {
		end += z.Length
		s.zoneEnds = append(s.zoneEnds, end)
	}
	return
}

// Conductivity is clamped to the end values outside the table
func (s *Steel) Conductivity(T float64) float64 { return s.lambda.Predict(T) }

func (s *Steel) Density(T float64) float64 { return s.density.Predict(T) }

func SolidHeat(T float64) (c float64) {
	c = 469 + 0.16*(T-323)
	for i := range peakTemps {
		d := (peakTemps[i] - T) / peakWidths[i]
		c += peakHeats[i] * math.Exp(-16*d*d)
	}
	return
}

// LiquidFraction rises from 0 at the solidus to 1 at the liquidus along a
// smoothstep, so its derivative vanishes at both ends
func LiquidFraction(T float64) float64 {
	switch {
	case T <= TSolidus:
		return 0
	case T >= TLiquidus:
		return 1
	}
	s := (T - TSolidus) / (TLiquidus - TSolidus)
	return s * s * (3 - 2*s)
}

// EffectiveHeat blends the solid and liquid branches by liquid fraction and
// adds the latent heat released across the mushy zone
func (s *Steel) EffectiveHeat(T float64) float64 {
	var (
		fl     = LiquidFraction(T)
		dfl    = (LiquidFraction(T+s.Delta) - LiquidFraction(T-s.Delta)) / (2 * s.Delta)
		solid  float64
		liquid = CLiquid
	)
	if fl < 1 {
		solid = SolidHeat(T)
	}
	return (1-fl)*solid + fl*liquid + Latent*dfl
}

func (s *Steel) zone(t float64) int {
	x := t * s.Speed
	for i, end := range s.zoneEnds {
		if x <= end {
			return i
		}
	}
	return len(s.zoneEnds) - 1
}

func (s *Steel) Convective(t float64) float64 { return s.Zones[s.zone(t)].Alpha }

func (s *Steel) Radiative(t float64) float64 {
	if s.Zones[s.zone(t)].Radiating {
		return Emissivity
	}
	return 0
}

func (s *Steel) EnvTemp() float64  { return s.envT }
func (s *Steel) EnvTemp4() float64 { return s.envT4 }

func (s *Steel) PathLength() float64 { return s.zoneEnds[len(s.zoneEnds)-1] }

// Constant is a linear material with fixed properties
type Constant struct {
	Lambda, Rho, C     float64
	Alpha, Sigma, EnvT float64
	Length             float64
}

func (c Constant) Conductivity(T float64) float64  { return c.Lambda }
func (c Constant) Density(T float64) float64       { return c.Rho }
func (c Constant) EffectiveHeat(T float64) float64 { return c.C }
func (c Constant) Convective(t float64) float64    { return c.Alpha }
func (c Constant) Radiative(t float64) float64     { return c.Sigma }
func (c Constant) EnvTemp() float64                { return c.EnvT }
func (c Constant) EnvTemp4() float64               { return utils.POW(c.EnvT, 4) }
func (c Constant) PathLength() float64             { return c.Length }

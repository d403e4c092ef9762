package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteel(t *testing.T) {
	s, err := NewSteel(DefaultSpeed, 300)
	require.NoError(t, err)
	{ // Test table lookup, interpolation and clamping
		assert.InDelta(t, 52.56057, s.Conductivity(273), 1.e-12)
		assert.InDelta(t, 52.56057, s.Conductivity(100), 1.e-12)
		assert.InDelta(t, 28.0, s.Conductivity(2500), 1.e-12)
		assert.InDelta(t, 0.5*(52.56057+51.35258), s.Conductivity(323), 1.e-9)
		assert.InDelta(t, 7000., s.Density(1750), 1.e-9)
		assert.InDelta(t, 0.5*(7885.884+7845.138), s.Density(323), 1.e-9)
	}
	{ // Test effective heat is continuous at the solidus and liquidus
		for _, T0 := range []float64{TSolidus, TLiquidus} {
			for _, eps := range []float64{1.e-3, 1.e-5, 1.e-7} {
				below, above := s.EffectiveHeat(T0-eps), s.EffectiveHeat(T0+eps)
				assert.InDelta(t, below, above, 1.e-6+2000*eps, "T0 = %g eps = %g", T0, eps)
			}
		}
		// Far from the mushy zone the pure branches are recovered
		assert.InDelta(t, SolidHeat(1200), s.EffectiveHeat(1200), 1.e-9)
		assert.InDelta(t, CLiquid, s.EffectiveHeat(1800), 1.e-9)
		// Latent heat dominates inside the mushy zone
		assert.Greater(t, s.EffectiveHeat(0.5*(TSolidus+TLiquidus)), 5000.)
	}
	{ // Test the latent heat integrates to the configured value
		var (
			sum float64
			dT  = 0.01
		)
		for T := TSolidus - 5; T < TLiquidus+5; T += dT {
			fl := LiquidFraction(T)
			sum += (s.EffectiveHeat(T) - (1-fl)*SolidHeat(T) - fl*CLiquid) * dT
		}
		assert.InDelta(t, Latent, sum, 0.002*Latent)
	}
	{ // Test the cooling zone schedule
		tAt := func(x float64) float64 { return x / s.Speed }
		assert.Equal(t, 2100., s.Convective(0))
		assert.Equal(t, 2100., s.Convective(tAt(0.39)))
		assert.Equal(t, 60., s.Convective(tAt(0.5)))
		assert.Equal(t, 850., s.Convective(tAt(1.0)))
		assert.Equal(t, 120., s.Convective(tAt(2.0)))
		assert.Equal(t, 40., s.Convective(tAt(3.5)))
		assert.Equal(t, 25., s.Convective(tAt(10)))
		assert.Equal(t, 25., s.Convective(tAt(100)))
		assert.Equal(t, 0., s.Radiative(tAt(3.5)))
		assert.Equal(t, Emissivity, s.Radiative(tAt(10)))
		assert.InDelta(t, 22.7, s.PathLength(), 1.e-12)
		assert.Equal(t, 300., s.EnvTemp())
		assert.InDelta(t, 8.1e9, s.EnvTemp4(), 1.)
	}
	{ // Test construction errors
		_, err := NewSteel(0, 300)
		assert.Error(t, err)
	}
}

func TestConstant(t *testing.T) {
	c := Constant{Lambda: 30, Rho: 7000, C: 600, Alpha: 100, EnvT: 10, Length: 2}
	assert.Equal(t, 30., c.Conductivity(1e4))
	assert.Equal(t, 600., c.EffectiveHeat(1e4))
	assert.Equal(t, 1.e4, c.EnvTemp4())
	assert.Equal(t, 2., c.PathLength())
}

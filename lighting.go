package mapview

import "image/color"

// Lighting is the time-of-day brightness applied to composed pixels.
type Lighting uint8

const (
	LightingDay Lighting = iota
	LightingTwilight
	LightingNight
	numLightings
)

// lightingShift is the fixed-point precision of lightingFactors.
const lightingShift = 8

// lightingFactors holds the per-channel (R, G, B) multipliers in 1<<lightingShift
// units. Each channel is non-increasing from day to night and never above 1.
var lightingFactors = [numLightings][3]uint32{
	LightingDay:      {256, 256, 256},
	LightingTwilight: {216, 200, 224},
	LightingNight:    {128, 128, 168},
}

// ClampLighting converts an arbitrary index into a valid Lighting.
func ClampLighting(v int) Lighting {
	return Lighting(clampInt(v, 0, int(numLightings)-1))
}

// String returns the lighting name.
func (l Lighting) String() string {
	switch l {
	case LightingDay:
		return "day"
	case LightingTwilight:
		return "twilight"
	case LightingNight:
		return "night"
	}
	return "unknown"
}

// Factors returns the channel multipliers as fractions of 1.
func (l Lighting) Factors() (r, g, b float64) {
	f := lightingFactors[ClampLighting(int(l))]
	const one = 1 << lightingShift
	return float64(f[0]) / one, float64(f[1]) / one, float64(f[2]) / one
}

// LightPixel applies the lighting transform to a single color.
func LightPixel(c color.NRGBA, l Lighting) color.NRGBA {
	f := &lightingFactors[ClampLighting(int(l))]
	return color.NRGBA{
		R: scaleChannel(c.R, f[0]),
		G: scaleChannel(c.G, f[1]),
		B: scaleChannel(c.B, f[2]),
		A: c.A,
	}
}

// applyLighting transforms a packed NRGBA pixel slice in place.
func applyLighting(pix []uint8, l Lighting) {
	if l == LightingDay {
		return
	}
	f := &lightingFactors[ClampLighting(int(l))]
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i+0] = scaleChannel(pix[i+0], f[0])
		pix[i+1] = scaleChannel(pix[i+1], f[1])
		pix[i+2] = scaleChannel(pix[i+2], f[2])
	}
}

func scaleChannel(c uint8, f uint32) uint8 {
	v := (uint32(c) * f) >> lightingShift
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}

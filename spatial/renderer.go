package spatial

import (
	"math"

	"github.com/tphakala/simd/f64"

	"github.com/opd-ai/voxroom/geometry"
)

// Placement describes how one source reaches one listener.
type Placement struct {
	Spherical geometry.Spherical
	// Gain is the linear distance gain.
	Gain float64
	// HalfSpan is the speaker pan half-span in degrees.
	HalfSpan float64
}

// Renderer places a mono source into a stereo listener mix.
type Renderer interface {
	// Render adds src, heard from p, into dst[0] (left) and dst[1] (right).
	// v carries the history of this source for this listener.
	Render(dst [][]float64, src []float64, p Placement, v *Voice)
	Name() string
}

// Voice is the per source, per listener rendering state.
type Voice struct {
	history []float64
	ext     []float64
	fir     []float64
	shadow  [2]float64
	rear    [2]float64
}

// Reset clears the voice history.
func (v *Voice) Reset() {
	clear(v.history)
	v.shadow = [2]float64{}
	v.rear = [2]float64{}
}

const (
	headRadius    = 0.0875 // meters
	speedOfSound  = 343.0  // m/s
	maxILDdB      = 8.0
	shadowMinHz   = 1500.0
	shadowMaxHz   = 20000.0
	rearCutoffHz  = 5000.0
	elevationLoss = 0.15
	pinnaTaps     = 24
)

// Binaural renders for headphones with a parametric head model.
//
// Quality 1 uses interaural level differences only. Quality 2 and 3 add the
// Woodworth interaural time difference. Quality 4 adds far ear head shadow,
// rear darkening and an elevation level cue. Quality 5 adds a pinna notch
// filter whose delay follows elevation.
type Binaural struct {
	sampleRate int
	quality    int
	maxITD     int
}

// NewBinaural creates a headphone renderer.
func NewBinaural(sampleRate, quality int) *Binaural {
	maxITD := int(math.Ceil(headRadius / speedOfSound * (math.Pi/2 + 1) * float64(sampleRate)))
	return &Binaural{sampleRate: sampleRate, quality: quality, maxITD: maxITD}
}

// Name implements Renderer.
func (b *Binaural) Name() string { return "binaural" }

// ITD returns the Woodworth interaural time difference in seconds for a
// lateral angle in radians.
func ITD(lateral float64) float64 {
	a := math.Abs(lateral)
	return headRadius / speedOfSound * (a + math.Sin(a))
}

func lowpassCoeff(cutoff float64, sampleRate int) float64 {
	return 1 - math.Exp(-2*math.Pi*cutoff/float64(sampleRate))
}

// pinnaKernel returns the reversed taps of a comb notch whose delay grows as
// the source moves down.
func (b *Binaural) pinnaKernel(dst []float64, elevation float64) []float64 {
	delaySec := 0.00008 + 0.00012*(90-elevation)/180
	d := min(max(int(math.Round(delaySec*float64(b.sampleRate))), 1), pinnaTaps-1)
	if cap(dst) < pinnaTaps {
		dst = make([]float64, pinnaTaps)
	}
	dst = dst[:pinnaTaps]
	clear(dst)
	// causal taps h[0]=1, h[d]=-0.4, stored reversed for ConvolveValid
	dst[pinnaTaps-1] = 1
	dst[pinnaTaps-1-d] = -0.4
	return dst
}

// Render implements Renderer.
func (b *Binaural) Render(dst [][]float64, src []float64, p Placement, v *Voice) {
	n := len(src)
	hist := b.maxITD + pinnaTaps - 1
	if len(v.history) != hist {
		v.history = make([]float64, hist)
	}

	v.ext = append(append(v.ext[:0], v.history...), src...)
	filtered := v.ext[pinnaTaps-1:]
	if b.quality >= 5 {
		kernel := b.pinnaKernel(nil, p.Spherical.Elevation)
		if cap(v.fir) < n+b.maxITD {
			v.fir = make([]float64, n+b.maxITD)
		}
		v.fir = v.fir[:n+b.maxITD]
		f64.ConvolveValid(v.fir, v.ext, kernel)
		filtered = v.fir
	}

	az := p.Spherical.Azimuth * math.Pi / 180
	el := p.Spherical.Elevation * math.Pi / 180
	lateral := math.Asin(math.Max(-1, math.Min(1, math.Sin(az)*math.Cos(el))))

	// ear 0 is left; a source to the right puts the left ear in shadow
	far := 0
	if lateral < 0 {
		far = 1
	}

	ild := maxILDdB * math.Abs(math.Sin(lateral))
	gains := [2]float64{p.Gain, p.Gain}
	gains[far] *= math.Pow(10, -ild/20)

	var delays [2]int
	if b.quality >= 2 {
		delays[far] = min(int(math.Round(ITD(lateral)*float64(b.sampleRate))), b.maxITD)
	}

	shadow := b.quality >= 4 && lateral != 0
	rear := b.quality >= 4 && math.Abs(p.Spherical.Azimuth) > 90
	if b.quality >= 4 {
		elGain := 1 - elevationLoss*math.Abs(math.Sin(el))
		gains[0] *= elGain
		gains[1] *= elGain
	}
	shadowA := lowpassCoeff(shadowMaxHz-(shadowMaxHz-shadowMinHz)*math.Abs(math.Sin(lateral)), b.sampleRate)
	rearA := lowpassCoeff(rearCutoffHz, b.sampleRate)

	for ear := range 2 {
		out := dst[ear]
		g := gains[ear]
		base := b.maxITD - delays[ear]
		for i := range n {
			s := filtered[base+i]
			if shadow && ear == far {
				v.shadow[ear] += shadowA * (s - v.shadow[ear])
				s = v.shadow[ear]
			}
			if rear {
				v.rear[ear] += rearA * (s - v.rear[ear])
				s = v.rear[ear]
			}
			out[i] += g * s
		}
	}

	copy(v.history, v.ext[len(v.ext)-hist:])
}

// Speaker renders a constant power stereo pan limited to the listener's
// half-span. Sources behind the listener fold to the front.
type Speaker struct{}

// Name implements Renderer.
func (Speaker) Name() string { return "speaker" }

// PanGains returns the left and right gains for azimuth az within
// ±halfSpan degrees.
func PanGains(az, halfSpan float64) (left, right float64) {
	if az > 90 {
		az = 180 - az
	} else if az < -90 {
		az = -180 - az
	}
	if halfSpan <= 0 {
		halfSpan = 1
	}
	az = math.Max(-halfSpan, math.Min(halfSpan, az))
	theta := (az/halfSpan + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// Render implements Renderer.
func (Speaker) Render(dst [][]float64, src []float64, p Placement, _ *Voice) {
	gl, gr := PanGains(p.Spherical.Azimuth, p.HalfSpan)
	gl *= p.Gain
	gr *= p.Gain
	left, right := dst[0], dst[1]
	for i, s := range src {
		left[i] += gl * s
		right[i] += gr * s
	}
}

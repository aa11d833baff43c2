package spatial

// Reverberator adds a room response to a listener mix.
type Reverberator interface {
	// Process feeds send through the reverb and adds the wet signal to dst.
	Process(dst, send []float64)
	// Reset silences the reverb tail.
	Reset()
}

const (
	reverbRoomSize = 0.6
	reverbFeedback = 0.7
	reverbAllpass  = 0.5
	// stereoSpread offsets the delay lines of the right channel reverb so
	// both ears decorrelate.
	stereoSpread = 23
)

// Schroeder is a reverb of parallel feedback combs followed by two series
// allpass filters. Higher spatial quality uses more combs.
type Schroeder struct {
	combs   []combFilter
	allpass [2]allpassFilter
	norm    float64
}

type combFilter struct {
	buf []float64
	pos int
	fb  float64
}

type allpassFilter struct {
	buf []float64
	pos int
	fb  float64
}

// NewSchroeder creates a reverb for sampleRate. quality in [1,5] selects 2,
// 3 or 4 combs; spread lengthens every delay line by that many samples.
func NewSchroeder(sampleRate, quality, spread int) *Schroeder {
	base := max(int(float64(sampleRate)*reverbRoomSize*0.05), 10)

	ratios := []int{1000, 1117, 1271, 1437}
	n := 2
	switch {
	case quality >= 4:
		n = 4
	case quality == 3:
		n = 3
	}

	r := &Schroeder{
		combs: make([]combFilter, n),
		norm:  1 / float64(n),
	}
	for i := range r.combs {
		r.combs[i] = combFilter{
			buf: make([]float64, base*ratios[i]/1000+spread),
			fb:  reverbFeedback,
		}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{
			buf: make([]float64, max(apLens[i]+spread/2, 1)),
			fb:  reverbAllpass,
		}
	}
	return r
}

// Process implements Reverberator.
func (r *Schroeder) Process(dst, send []float64) {
	for i, in := range send {
		var out float64
		for c := range r.combs {
			out += r.combs[c].process(in)
		}
		out *= r.norm
		for a := range r.allpass {
			out = r.allpass[a].process(out)
		}
		dst[i] += out
	}
}

// Reset implements Reverberator.
func (r *Schroeder) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float64) float64 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float64) float64 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

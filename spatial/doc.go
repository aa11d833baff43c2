// Package spatial renders every audible source into a listener's personal
// mix.
//
// For each source the listener-relative direction and distance come from
// geometry.Relative. Distance sets a linear gain through the attenuation law
// (dB per meter up to a maximum distance). Direction drives a Renderer chosen
// by the listener's device: Binaural for headphones, Speaker for a
// constant-power pan limited to the half-span angle. A Reverberator adds the
// room response fed by the attenuated sources.
//
// Listeners with 3D mixing off hear a flat unity sum of every source.
//
//	m, _ := spatial.NewMixer(spatial.MixerConfig{SampleRate: 48000, Frames: 480, Channels: 2, Quality: 3}, nil)
//	st := m.NewListenerState()
//	err := m.Mix(out, listener, st, contributions)
package spatial

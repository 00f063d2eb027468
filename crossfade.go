package outputworker

import "math/rand"

// ditherState is a tiny triangular-PDF dither generator. It is seeded
// once, with a fixed seed, when its OutputState is constructed, and its
// random state persists across every chunk mixed on that output,
// across open sessions; it keeps no error-feedback state, each sample
// gets independent noise — spec.md leaves this unspecified beyond "treat as persisting for
// the lifetime of the open session", so a single long-lived generator
// per OutputState satisfies that reading.
type ditherState struct {
	rng   *rand.Rand
	prev  float64
	ready bool
}

func newDitherState() ditherState {
	return ditherState{rng: rand.New(rand.NewSource(1))}
}

func (d *ditherState) noise() float64 {
	a := d.rng.Float64() - 0.5
	b := d.rng.Float64() - 0.5
	return a + b // triangular distribution in [-1, 1]
}

// CrossFadeBuffer is a growable scratch buffer used to mix two
// overlapping chunks during a cross-fade. It is reused across mixes so
// steady-state playback does not allocate.
type CrossFadeBuffer struct {
	buf []byte
}

func (b *CrossFadeBuffer) ensure(n int) []byte {
	if cap(b.buf) < n {
		b.buf = make([]byte, n)
	}
	return b.buf[:n]
}

// Mix copies other (the incoming song's overlapping material, kept at
// full weight) into the scratch buffer, then blends in the first
// len(primary) bytes of primary at weight primaryWeight. other must be
// at least as long as primary; callers clamp primary to min(len(primary),
// len(other)) before calling, per the cross-fade rule in spec.md §4.6.
//
// Mixing operates on S16LE samples; frame is assumed aligned to 2-byte
// samples regardless of channel count, since the mix is channel-blind.
func (b *CrossFadeBuffer) Mix(primary, other []byte, primaryWeight float64, dither *ditherState) []byte {
	out := b.ensure(len(other))
	copy(out, other)

	n := len(primary)
	if n > len(other) {
		n = len(other)
	}
	// truncate to whole samples
	n -= n % 2

	for i := 0; i < n; i += 2 {
		otherSample := int16(uint16(out[i]) | uint16(out[i+1])<<8)
		primarySample := int16(uint16(primary[i]) | uint16(primary[i+1])<<8)

		mixed := float64(otherSample) + float64(primarySample)*primaryWeight
		if dither != nil {
			mixed += dither.noise()
		}
		mixed = clampSample(mixed)

		v := int16(mixed)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
	}
	return out
}

func clampSample(v float64) float64 {
	const max = float64(32767)
	const min = float64(-32768)
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

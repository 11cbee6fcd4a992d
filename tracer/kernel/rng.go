package kernel

// Per-pixel random number generator. The seed is scrambled with a few TEA
// rounds and the sequence is advanced with a 32-bit LCG; the device kernel
// uses the same scheme.
type rng struct {
	state uint32
}

const teaRounds = 4

func newRng(pixel, frame uint32) rng {
	v0, v1 := pixel, frame
	var s0 uint32
	for n := 0; n < teaRounds; n++ {
		s0 += 0x9e3779b9
		v0 += ((v1 << 4) + 0xa341316c) ^ (v1 + s0) ^ ((v1 >> 5) + 0xc8013ea4)
		v1 += ((v0 << 4) + 0xad90777d) ^ (v0 + s0) ^ ((v0 >> 5) + 0x7e95761e)
	}
	return rng{state: v0}
}

// Return a uniform float in [0, 1).
func (r *rng) next() float32 {
	r.state = 1664525*r.state + 1013904223
	return float32(r.state&0x00FFFFFF) / float32(0x01000000)
}

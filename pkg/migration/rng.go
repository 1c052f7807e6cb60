package migration

// Deterministic per-person RNG sub-streams (spec §4.4/§5/§9): each
// person's stream is derived from (masterSeed, personIndex) via a
// splitmix64-style mixer, following the documented splittable-source
// idiom for math/rand/v2 (a Source built from two mixed 64-bit seeds,
// wrapped per call so sub-streams never share state across persons or
// goroutines).

// splitmix64 advances state in place and returns the next output, per
// Vigna's splitmix64 generator.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// subStreamSeed derives the two PCG seed words for personIndex's
// sub-stream from masterSeed. Distinct personIndex values always produce
// distinct, reproducible seed pairs.
func subStreamSeed(masterSeed uint64, personIndex int64) (uint64, uint64) {
	state := masterSeed ^ (uint64(personIndex)*0x9E3779B97F4A7C15 + 0xD1B54A32D192ED03)
	a := splitmix64(&state)
	b := splitmix64(&state)
	return a, b
}

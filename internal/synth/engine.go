package synth

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/audio"
)

// FallbackPhrase is substituted when the prompt encodes to zero tokens.
// If even the fallback yields nothing, generation fails.
const FallbackPhrase = "ambient instrumental music"

// tableSize is the wavetable resolution in samples per cycle.
const tableSize = 2048

// Engine is the in-process generative model. The wavetables are built once in
// NewEngine and never mutated afterwards, so a single Engine is safe to share
// across concurrent requests.
type Engine struct {
	sine     []float64
	triangle []float64
}

// NewEngine builds the engine's wavetables.
func NewEngine() *Engine {
	e := &Engine{
		sine:     make([]float64, tableSize),
		triangle: make([]float64, tableSize),
	}
	for i := 0; i < tableSize; i++ {
		phase := float64(i) / tableSize
		e.sine[i] = math.Sin(2 * math.Pi * phase)
		if phase < 0.5 {
			e.triangle[i] = 4*phase - 1
		} else {
			e.triangle[i] = 3 - 4*phase
		}
	}

	log.Info().Int("table_size", tableSize).Msg("Synth engine initialized")
	return e
}

// EncodeTokens maps prompt text to the engine's token space. Words shorter
// than two letters are dropped, matching the conditioning vocabulary.
func (e *Engine) EncodeTokens(prompt string) []uint64 {
	var tokens []uint64
	for _, word := range strings.Fields(strings.ToLower(prompt)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return r < 'a' || r > 'z'
		})
		if len(word) < 2 {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(word))
		tokens = append(tokens, h.Sum64())
	}
	return tokens
}

// SynthesizeChunk renders one fixed-size generation window. Output is
// deterministic for a given token sequence and chunk index.
func (e *Engine) SynthesizeChunk(tokens []uint64, chunkIdx, chunkSec int) ([]int16, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("cannot synthesize from zero tokens")
	}

	numSamples := chunkSec * audio.SampleRate
	out := make([]int16, numSamples)

	// Each token contributes one voice; cap voices so dense prompts don't clip.
	voices := tokens
	if len(voices) > 8 {
		voices = voices[:8]
	}

	for v, tok := range voices {
		seed := tok ^ uint64(chunkIdx)*0x9e3779b97f4a7c15

		// Pentatonic-ish pitch set keeps arbitrary token mixes consonant.
		degrees := []float64{110, 130.81, 146.83, 164.81, 196, 220}
		freq := degrees[seed%uint64(len(degrees))] * float64(1+seed>>8%2)
		amp := 0.35 / float64(len(voices))
		lfoHz := 0.05 + float64(seed>>16%100)/1000.0

		table := e.sine
		if seed>>24%3 == 0 {
			table = e.triangle
		}

		phaseStep := freq * tableSize / audio.SampleRate
		phase := float64(seed % tableSize)
		for i := 0; i < numSamples; i++ {
			t := float64(i) / audio.SampleRate
			// Slow tremolo plus a fade at chunk edges to soften seams.
			lfo := 0.75 + 0.25*math.Sin(2*math.Pi*lfoHz*t+float64(v))
			env := edgeFade(i, numSamples)
			sample := table[int(phase)%tableSize] * amp * lfo * env
			out[i] += int16(sample * math.MaxInt16)
			phase += phaseStep
			if phase >= tableSize {
				phase -= tableSize
			}
		}
	}

	return out, nil
}

// edgeFade ramps the first and last 50 ms of a chunk.
func edgeFade(i, total int) float64 {
	fade := audio.SampleRate / 20
	if fade > total/2 {
		fade = total / 2
	}
	if fade == 0 {
		return 1
	}
	if i < fade {
		return float64(i) / float64(fade)
	}
	if i >= total-fade {
		return float64(total-i) / float64(fade)
	}
	return 1
}

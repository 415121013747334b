package audio

import (
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	samples := make([]int16, SampleRate) // 1 second
	for i := range samples {
		samples[i] = int16(i % 3000)
	}

	wav := EncodeWAV(samples, SampleRate)
	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", 44+len(samples)*2, len(wav))
	}

	clip, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if clip.SampleRate != SampleRate || clip.Channels != 1 {
		t.Errorf("expected %d Hz mono, got %d Hz %d ch", SampleRate, clip.SampleRate, clip.Channels)
	}
	if len(clip.Samples) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(clip.Samples))
	}
	for i := range samples {
		if clip.Samples[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], clip.Samples[i])
		}
	}
	if got := clip.DurationSec(); got != 1.0 {
		t.Errorf("expected 1s duration, got %f", got)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("not audio at all, definitely not RIFF data here")); err == nil {
		t.Error("expected error for non-RIFF input")
	}
	if _, err := DecodeWAV([]byte("RIFF")); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestToCanonicalDownmixesStereo(t *testing.T) {
	// Interleaved stereo: L=100, R=300 everywhere. Mono average is 200.
	stereo := make([]int16, 2000)
	for i := 0; i < len(stereo); i += 2 {
		stereo[i] = 100
		stereo[i+1] = 300
	}

	mono := ToCanonical(&Clip{Samples: stereo, SampleRate: SampleRate, Channels: 2})
	if len(mono) != 1000 {
		t.Fatalf("expected 1000 mono samples, got %d", len(mono))
	}
	for i, s := range mono {
		if s != 200 {
			t.Fatalf("sample %d: expected 200, got %d", i, s)
		}
	}
}

func TestToCanonicalResamples(t *testing.T) {
	// A constant signal survives resampling exactly.
	in := make([]int16, 48000)
	for i := range in {
		in[i] = 5000
	}

	out := ToCanonical(&Clip{Samples: in, SampleRate: 48000, Channels: 1})
	if len(out) != SampleRate {
		t.Fatalf("expected %d samples after 48k->16k, got %d", SampleRate, len(out))
	}
	for i, s := range out {
		if s != 5000 {
			t.Fatalf("sample %d: expected 5000, got %d", i, s)
		}
	}
}

func TestTileToLength(t *testing.T) {
	tiled := TileToLength([]int16{1, 2, 3}, 7)
	want := []int16{1, 2, 3, 1, 2, 3, 1}
	if len(tiled) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(tiled))
	}
	for i := range want {
		if tiled[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], tiled[i])
		}
	}

	silence := TileToLength(nil, 5)
	if len(silence) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(silence))
	}
	for _, s := range silence {
		if s != 0 {
			t.Fatal("expected silence for empty input")
		}
	}
}

func TestNormalizeBytesRawPCM(t *testing.T) {
	// 24000 Hz raw PCM, constant value; canonical output is 16000 Hz.
	raw := make([]byte, 24000*2)
	for i := 0; i < len(raw); i += 2 {
		raw[i] = 0x10
		raw[i+1] = 0x00
	}

	wav, err := NormalizeBytes(raw, "audio/L16;rate=24000")
	if err != nil {
		t.Fatalf("NormalizeBytes: %v", err)
	}

	clip, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if clip.SampleRate != SampleRate {
		t.Errorf("expected %d Hz, got %d", SampleRate, clip.SampleRate)
	}
	if len(clip.Samples) != SampleRate {
		t.Errorf("expected %d samples, got %d", SampleRate, len(clip.Samples))
	}
}

func TestNormalizeBytesWAVPassthrough(t *testing.T) {
	in := EncodeWAV(make([]int16, 800), SampleRate)

	out, err := NormalizeBytes(in, "audio/wav")
	if err != nil {
		t.Fatalf("NormalizeBytes: %v", err)
	}
	clip, err := DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if clip.SampleRate != SampleRate || clip.Channels != 1 || len(clip.Samples) != 800 {
		t.Errorf("unexpected canonical clip: %d Hz, %d ch, %d samples", clip.SampleRate, clip.Channels, len(clip.Samples))
	}
}

func TestParseAudioMimeType(t *testing.T) {
	p := parseAudioMimeType("audio/L16;rate=22050")
	if p.bitsPerSample != 16 || p.rate != 22050 {
		t.Errorf("got bits=%d rate=%d", p.bitsPerSample, p.rate)
	}

	p = parseAudioMimeType("audio/L24")
	if p.bitsPerSample != 24 || p.rate != 24000 {
		t.Errorf("got bits=%d rate=%d", p.bitsPerSample, p.rate)
	}
}

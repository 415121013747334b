package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Canonical encoding for every artifact the orchestrator returns.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// Clip is decoded PCM audio.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DurationSec returns the clip length in seconds for a mono clip.
func (c *Clip) DurationSec() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// EncodeWAV wraps 16-bit PCM samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	numChannels := Channels
	bytesPerSample := BitsPerSample / 8
	blockAlign := numChannels * bytesPerSample
	byteRate := sampleRate * blockAlign
	dataSize := len(data)
	chunkSize := 36 + dataSize

	header := new(bytes.Buffer)
	binary.Write(header, binary.LittleEndian, []byte("RIFF"))
	binary.Write(header, binary.LittleEndian, uint32(chunkSize))
	binary.Write(header, binary.LittleEndian, []byte("WAVE"))
	binary.Write(header, binary.LittleEndian, []byte("fmt "))
	binary.Write(header, binary.LittleEndian, uint32(16))
	binary.Write(header, binary.LittleEndian, uint16(1))
	binary.Write(header, binary.LittleEndian, uint16(numChannels))
	binary.Write(header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(header, binary.LittleEndian, uint32(byteRate))
	binary.Write(header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(header, binary.LittleEndian, uint16(BitsPerSample))
	binary.Write(header, binary.LittleEndian, []byte("data"))
	binary.Write(header, binary.LittleEndian, uint32(dataSize))

	return append(header.Bytes(), data...)
}

// DecodeWAV parses a RIFF/WAVE container with 16-bit PCM data.
func DecodeWAV(b []byte) (*Clip, error) {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		numChannels   int
		sampleRate    int
		bitsPerSample int
		data          []byte
	)

	// Walk chunks; fmt must precede data.
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d", size)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported WAV format code %d (want PCM)", format)
			}
			numChannels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
		case "data":
			data = b[body : body+size]
		}
		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if sampleRate == 0 || numChannels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("missing data chunk")
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return &Clip{Samples: samples, SampleRate: sampleRate, Channels: numChannels}, nil
}

// ToCanonical converts a decoded clip to the canonical encoding: mono,
// SampleRate Hz. Multi-channel input is averaged; rate conversion is linear.
func ToCanonical(c *Clip) []int16 {
	mono := c.Samples
	if c.Channels > 1 {
		mono = make([]int16, len(c.Samples)/c.Channels)
		for i := range mono {
			sum := 0
			for ch := 0; ch < c.Channels; ch++ {
				sum += int(c.Samples[i*c.Channels+ch])
			}
			mono[i] = int16(sum / c.Channels)
		}
	}

	if c.SampleRate == SampleRate {
		return mono
	}
	if len(mono) == 0 {
		return mono
	}

	outLen := int(int64(len(mono)) * int64(SampleRate) / int64(c.SampleRate))
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) * float64(c.SampleRate) / float64(SampleRate)
		j := int(srcPos)
		if j >= len(mono)-1 {
			out[i] = mono[len(mono)-1]
			continue
		}
		frac := srcPos - float64(j)
		out[i] = int16(float64(mono[j])*(1-frac) + float64(mono[j+1])*frac)
	}
	return out
}

// TileToLength repeats samples until at least target length, then truncates to
// exactly target. Empty input yields silence of target length.
func TileToLength(samples []int16, target int) []int16 {
	out := make([]int16, target)
	if len(samples) == 0 {
		return out
	}
	for i := range out {
		out[i] = samples[i%len(samples)]
	}
	return out
}

// NormalizeBytes converts arbitrary downloaded or inline audio to canonical
// WAV bytes. Raw PCM (audio/L16;rate=24000 style MIME) is wrapped first; WAV
// input is converted in process; anything else goes through ffmpeg.
func NormalizeBytes(b []byte, mimeType string) ([]byte, error) {
	if strings.HasPrefix(mimeType, "audio/L") {
		params := parseAudioMimeType(mimeType)
		if params.bitsPerSample != 16 {
			return nil, fmt.Errorf("unsupported raw PCM depth %d", params.bitsPerSample)
		}
		samples := make([]int16, len(b)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
		}
		mono := ToCanonical(&Clip{Samples: samples, SampleRate: params.rate, Channels: 1})
		return EncodeWAV(mono, SampleRate), nil
	}

	if len(b) >= 12 && string(b[0:4]) == "RIFF" {
		clip, err := DecodeWAV(b)
		if err != nil {
			return nil, err
		}
		return EncodeWAV(ToCanonical(clip), SampleRate), nil
	}

	return normalizeViaFFmpeg(b)
}

// normalizeViaFFmpeg shells out to ffmpeg for compressed formats (mp3 etc.),
// mirroring the 16k/mono conversion everything else uses.
func normalizeViaFFmpeg(b []byte) ([]byte, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("unsupported audio format and ffmpeg not available: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "geotone-audio-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, "in")
	dst := filepath.Join(tmpDir, "out.wav")
	if err := os.WriteFile(src, b, 0o644); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	cmd := exec.Command("ffmpeg", "-y", "-i", src,
		"-ar", strconv.Itoa(SampleRate), "-ac", strconv.Itoa(Channels), dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Warn().Err(err).Str("ffmpeg_output", truncate(string(out), 512)).Msg("ffmpeg conversion failed")
		return nil, fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	return os.ReadFile(dst)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

type audioParams struct {
	bitsPerSample int
	rate          int
}

// parseAudioMimeType parses bits per sample and rate from an audio MIME type.
func parseAudioMimeType(mimeType string) audioParams {
	params := audioParams{bitsPerSample: 16, rate: 24000}

	parts := strings.Split(mimeType, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "rate=") {
			if rate, err := strconv.Atoi(strings.Split(part, "=")[1]); err == nil {
				params.rate = rate
			}
		} else if strings.HasPrefix(part, "audio/L") {
			re := regexp.MustCompile(`audio/L(\d+)`)
			if matches := re.FindStringSubmatch(part); len(matches) > 1 {
				if bits, err := strconv.Atoi(matches[1]); err == nil {
					params.bitsPerSample = bits
				}
			}
		}
	}
	return params
}

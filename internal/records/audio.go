package records

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Wire audio is G.711 mu-law at 8 kHz, the narrow-band telephony encoding.
const (
	WireSampleRate      = 8000
	ResampledSampleRate = 16000
)

const (
	muLawBias = 0x84
)

// DecodeMuLaw expands mu-law bytes to 16-bit PCM samples.
func DecodeMuLaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawDecodeSample(b)
	}
	return out
}

func muLawDecodeSample(b byte) int16 {
	b = ^b
	t := (int32(b&0x0F) << 3) + muLawBias
	t <<= (b & 0x70) >> 4
	if b&0x80 != 0 {
		return int16(muLawBias - t)
	}
	return int16(t - muLawBias)
}

// Resample8to16 doubles the sample rate by linear interpolation, producing a
// higher-fidelity artifact from the narrow-band wire audio.
func Resample8to16(samples []int16) []int16 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]int16, 0, len(samples)*2)
	for i, s := range samples {
		out = append(out, s)
		if i+1 < len(samples) {
			out = append(out, int16((int32(s)+int32(samples[i+1]))/2))
		} else {
			out = append(out, s)
		}
	}
	return out
}

// EncodeWAV renders PCM16 mono samples as a WAV file.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// DecodeWAV parses a PCM16 mono WAV file back into samples.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("records: not a wav file")
	}
	sampleRate := 0
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkLen > len(data) {
			return nil, 0, fmt.Errorf("records: truncated wav chunk %q", chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, fmt.Errorf("records: short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body : body+2]); format != 1 {
				return nil, 0, fmt.Errorf("records: unsupported wav format %d", format)
			}
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
		case "data":
			samples := make([]int16, chunkLen/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[body+i*2 : body+i*2+2]))
			}
			return samples, sampleRate, nil
		}
		pos = body + chunkLen
	}
	return nil, 0, fmt.Errorf("records: wav data chunk missing")
}

// AudioWriter persists per-channel call recordings as WAV artifacts.
type AudioWriter struct {
	dir      string
	resample bool
}

// NewAudioWriter stores recordings under dir. When resample is set the 8 kHz
// wire audio is upsampled to 16 kHz before writing.
func NewAudioWriter(dir string, resample bool) *AudioWriter {
	return &AudioWriter{dir: dir, resample: resample}
}

// SaveChannel decodes the base64 mu-law chunks appended during the call and
// writes one WAV file for the channel. Returns the file path and the number
// of wire samples written.
func (w *AudioWriter) SaveChannel(callSID, speaker string, chunks []string) (string, int, error) {
	if len(chunks) == 0 {
		return "", 0, nil
	}
	var raw []byte
	for i, chunk := range chunks {
		decoded, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return "", 0, fmt.Errorf("records: decode audio chunk %d for %s: %w", i, speaker, err)
		}
		raw = append(raw, decoded...)
	}

	samples := DecodeMuLaw(raw)
	wireSamples := len(samples)
	rate := WireSampleRate
	if w.resample {
		samples = Resample8to16(samples)
		rate = ResampledSampleRate
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("records: create audio dir: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.wav", callSID, speaker))
	if err := os.WriteFile(path, EncodeWAV(samples, rate), 0o644); err != nil {
		return "", 0, fmt.Errorf("records: write %s audio: %w", speaker, err)
	}
	return path, wireSamples, nil
}

// ChannelPath returns where a channel's artifact would live.
func (w *AudioWriter) ChannelPath(callSID, speaker string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.wav", callSID, speaker))
}

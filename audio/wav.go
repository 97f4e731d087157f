package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"
)

// WavHeader is the canonical 44-byte RIFF/WAVE header for uncompressed PCM.
type WavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// NewWavHeader builds the header for dataSize bytes of PCM in format f.
func NewWavHeader(f Format, dataSize uint32) WavHeader {
	return WavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesPerSecond()),
		BlockAlign:    uint16(f.Channels * f.SampleWidth),
		BitsPerSample: uint16(f.SampleWidth * 8),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// WriteWavHeader writes the header for dataSize bytes of PCM.
func WriteWavHeader(w io.Writer, f Format, dataSize uint32) error {
	return binary.Write(w, binary.LittleEndian, NewWavHeader(f, dataSize))
}

// EncodeWAV serialises frames into a single PCM WAV container. Every frame
// must carry format f; the header always describes f, not the frames.
func EncodeWAV(w io.Writer, f Format, frames []Frame) error {
	var size int
	for i, fr := range frames {
		if fr.Format != f {
			return fmt.Errorf("frame %d has format %s, want %s", i, fr.Format, f)
		}
		size += len(fr.Data)
	}
	if err := WriteWavHeader(w, f, uint32(size)); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	for _, fr := range frames {
		if _, err := w.Write(fr.Data); err != nil {
			return fmt.Errorf("failed to write WAV data: %w", err)
		}
	}
	return nil
}

// EncodeWAVBytes is EncodeWAV into memory.
func EncodeWAVBytes(f Format, frames []Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(frames)*DefaultFrameSize*sampleWidth)
	if err := EncodeWAV(&buf, f, frames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clip is a decoded WAV: interleaved int16 samples plus their format.
type Clip struct {
	Format  Format
	Samples []int16
}

// Duration is the playback time of the clip.
func (c Clip) Duration() time.Duration {
	return c.Format.Duration(len(c.Samples) * c.Format.SampleWidth)
}

// Mono returns the clip as normalised mono samples, the input format whisper expects.
func (c Clip) Mono() []float32 {
	return MonoFloat32(c.Samples, c.Format.Channels)
}

type riffReader interface {
	io.Reader
	io.ReaderAt
}

// DecodeWAV reads a PCM WAV container with one or two channels.
func DecodeWAV(r riffReader) (Clip, error) {
	reader := wav.NewReader(r)
	format, err := reader.Format()
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read WAV format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return Clip{}, fmt.Errorf("unsupported WAV audio format %d", format.AudioFormat)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return Clip{}, fmt.Errorf("unsupported WAV channel count %d", format.NumChannels)
	}

	clip := Clip{Format: PCM16(int(format.SampleRate), int(format.NumChannels))}
	channels := int(format.NumChannels)
	for {
		samples, err := reader.ReadSamples(DefaultFrameSize)
		for _, s := range samples {
			for ch := 0; ch < channels; ch++ {
				clip.Samples = append(clip.Samples, toInt16(s.Values[ch], format.BitsPerSample))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("failed to read WAV samples: %w", err)
		}
	}
	return clip, nil
}

// DecodeWAVBytes decodes an in-memory container.
func DecodeWAVBytes(data []byte) (Clip, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// LoadWAV decodes a container from disk.
func LoadWAV(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()
	return DecodeWAV(file)
}

func toInt16(v int, bits uint16) int16 {
	switch bits {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

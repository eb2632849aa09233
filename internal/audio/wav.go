package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"whisprly/internal/ports"
)

const bitDepth = 16

var ErrNoAudio = errors.New("no audio samples")

// WAVCodec encodes captures as 16-bit PCM WAV and decodes them back.
type WAVCodec struct{}

// Encode wraps little-endian 16-bit PCM in a WAV container. Trailing bytes
// that do not form a whole frame are dropped.
func (WAVCodec) Encode(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if channels <= 0 {
		channels = 1
	}
	frame := channels * bitDepth / 8
	pcm = pcm[:len(pcm)-len(pcm)%frame]
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	out := &seekableBuffer{}
	enc := wav.NewEncoder(out, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	return out.Bytes(), nil
}

// Decode implements ports.AudioDecoder.
func (WAVCodec) Decode(encoded []byte) (ports.PCMAudio, error) {
	dec := wav.NewDecoder(bytes.NewReader(encoded))
	if !dec.IsValidFile() {
		return ports.PCMAudio{}, errors.New("not a valid wav payload")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return ports.PCMAudio{}, fmt.Errorf("failed to decode wav: %w", err)
	}
	if dec.BitDepth != bitDepth {
		return ports.PCMAudio{}, fmt.Errorf("unsupported wav bit depth %d", dec.BitDepth)
	}

	pcm := make([]byte, 2*len(buf.Data))
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(sample)))
	}
	return ports.PCMAudio{
		Data:       pcm,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// seekableBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back
// to patch chunk sizes on Close.
type seekableBuffer struct {
	buf []byte
	pos int
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = int(next)
	return next, nil
}

func (b *seekableBuffer) Bytes() []byte { return b.buf }

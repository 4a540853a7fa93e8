// Package audioconv decodes common audio containers into the mono 16 kHz
// float32 PCM that whisper expects.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int
}

// pcm is decoded, interleaved audio before downmix and resampling.
type pcm struct {
	samples  []float32
	rate     int
	channels int
}

type decoder func(r io.ReadSeeker) (pcm, error)

// DecodeFile picks a decoder by extension, then by magic bytes.
func DecodeFile(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, strings.ToLower(filepath.Ext(path)), opt)
}

// DecodeBytes is DecodeFile for in-memory audio, e.g. an upload.
func DecodeBytes(ctx context.Context, data []byte, opt Options) ([]float32, error) {
	return Decode(ctx, bytes.NewReader(data), "", opt)
}

func Decode(ctx context.Context, r io.ReadSeeker, ext string, opt Options) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoders, err := pick(r, ext)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, dec := range decoders {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		p, err := dec(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return finish(p, opt), nil
	}
	return nil, fmt.Errorf("decode %s: %w", ext, errors.Join(errs...))
}

func pick(r io.ReadSeeker, ext string) ([]decoder, error) {
	switch ext {
	case ".wav":
		return []decoder{decodeWAV}, nil
	case ".mp3":
		return []decoder{decodeMP3}, nil
	case ".ogg", ".oga", ".opus":
		return []decoder{decodeOggVorbis, decodeOggOpus}, nil
	}

	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case string(magic) == "RIFF":
		return []decoder{decodeWAV}, nil
	case string(magic) == "OggS":
		return []decoder{decodeOggVorbis, decodeOggOpus}, nil
	case len(magic) >= 3 && (string(magic[:3]) == "ID3" || (magic[0] == 0xff && magic[1]&0xe0 == 0xe0)):
		return []decoder{decodeMP3}, nil
	default:
		return nil, fmt.Errorf("%w %q (supported: wav, mp3, ogg vorbis/opus)", ErrUnsupported, ext)
	}
}

func finish(p pcm, opt Options) []float32 {
	x := downmixInterleaved(p.samples, p.channels)
	x = resampleLinear(x, p.rate, TargetRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) (pcm, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return pcm{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm{}, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return pcm{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}

	p := pcm{samples: intSliceToFloat32(pb.Data, bd), rate: 44100, channels: 1}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			p.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			p.rate = pb.Format.SampleRate
		}
	}
	return p, nil
}

func decodeMP3(r io.ReadSeeker) (pcm, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return pcm{}, err
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return pcm{}, err
	}

	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return pcm{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always emits 16-bit stereo
	return pcm{samples: int16SliceToFloat32(ints), rate: rate, channels: 2}, nil
}

func decodeOggVorbis(r io.ReadSeeker) (pcm, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return pcm{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return pcm{}, errors.New("invalid ogg/vorbis stream")
	}
	return pcm{samples: samples, rate: format.SampleRate, channels: format.Channels}, nil
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		switch {
		case i0 >= len(in):
			out[i] = in[len(in)-1]
		case i1 >= len(in):
			out[i] = in[i0]
		default:
			a := float32(src - float64(i0))
			out[i] = in[i0]*(1-a) + in[i1]*a
		}
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

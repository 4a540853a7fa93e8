package voice

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate       = 16000
	frameSize        = 320 // 20ms
	frameDuration    = 20 * time.Millisecond
	silenceThreshRMS = 0.015
	silenceDuration  = 600 * time.Millisecond
	maxRecording     = 10 * time.Second
)

var ErrNoSpeech = errors.New("no speech recorded")

// Recorder captures mono 16 kHz float32 PCM from the default input device.
type Recorder struct{}

func NewRecorder() (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &Recorder{}, nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordUtterance waits for speech, then records until 600ms of silence or
// the 10s cap.
func (r *Recorder) RecordUtterance(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking bool
		silence  time.Duration
	)

	maxFrames := int(maxRecording / frameDuration)
	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshRMS {
			speaking = true
			silence = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silence += frameDuration
			if silence >= silenceDuration {
				break
			}
			out = append(out, buf...)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSpeech
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "log/slog"

	"lull/internal/screen"
)

// Camera grabs single JPEG frames with ffmpeg.
type Camera struct {
	format string
	device string
	run    screen.Runner
}

func NewCamera(format, device string, run screen.Runner) *Camera {
	if run == nil {
		run = screen.ExecRunner
	}
	return &Camera{format: format, device: device, run: run}
}

func (c *Camera) input() string {
	switch c.format {
	case "v4l2":
		if strings.HasPrefix(c.device, "/dev/") {
			return c.device
		}
		return "/dev/video" + c.device
	case "dshow":
		return "video=" + c.device
	default:
		return c.device
	}
}

func (c *Camera) args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", c.format,
		"-video_size", "640x480",
		"-i", c.input(),
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	}
}

func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	if c.format == "" {
		return nil, errors.New("camera input format not set")
	}

	out, err := c.run(ctx, nil, "ffmpeg", c.args()...)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("no image data captured")
	}

	log.Debug("Captured frame", "bytes", len(out), "device", c.input())

	return out, nil
}

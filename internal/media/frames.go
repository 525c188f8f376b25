package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FFmpegExtractor samples still frames out of a video using the ffmpeg and
// ffprobe binaries on PATH.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// ExtractFrames returns up to maxFrames JPEG frames sampled at evenly spaced
// timestamps across the video duration.
func (f *FFmpegExtractor) ExtractFrames(ctx context.Context, video []byte, maxFrames int) ([][]byte, error) {
	if maxFrames <= 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp("", "guardbot-frames-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			f.getLogEntry().WithError(err).Warn("cant remove temp dir")
		}
	}()

	videoPath := filepath.Join(dir, "input")
	if err := os.WriteFile(videoPath, video, 0o600); err != nil {
		return nil, fmt.Errorf("write video: %w", err)
	}

	duration, err := f.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	frames := make([][]byte, 0, maxFrames)
	for n := 0; n < maxFrames; n++ {
		offset := duration * (float64(n) + 0.5) / float64(maxFrames)
		framePath := filepath.Join(dir, fmt.Sprintf("frame-%d.jpg", n))
		cmd := exec.CommandContext(ctx, f.ffmpegPath,
			"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "3",
			"-y", framePath,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		frame, err := os.ReadFile(framePath)
		if err != nil {
			// Seeking past the last keyframe of a short clip produces no
			// output file, the frames collected so far still count.
			break
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (f *FFmpegExtractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}
	return duration, nil
}

func (f *FFmpegExtractor) getLogEntry() *log.Entry {
	return log.WithField("object", "FFmpegExtractor")
}

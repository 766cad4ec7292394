package executor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/pkg/config"
)

// FFmpegExecutor implements gateway.MediaToolkit with the local ffmpeg and
// ffprobe binaries.
type FFmpegExecutor struct {
	runner     port.CommandRunner
	ffmpeg     string
	ffprobe    string
	videoCodec string
	audioCodec string
}

var _ gateway.MediaToolkit = (*FFmpegExecutor)(nil)

func NewFFmpegExecutor(cfg *config.Config, runner port.CommandRunner) *FFmpegExecutor {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	e := &FFmpegExecutor{
		runner:     runner,
		ffmpeg:     "ffmpeg",
		ffprobe:    "ffprobe",
		videoCodec: "libx264",
		audioCodec: "aac",
	}
	if cfg != nil {
		ff := cfg.Pipeline.FFmpeg
		if strings.TrimSpace(ff.BinaryPath) != "" {
			e.ffmpeg = ff.BinaryPath
		}
		if strings.TrimSpace(ff.ProbeBinaryPath) != "" {
			e.ffprobe = ff.ProbeBinaryPath
		}
		if strings.TrimSpace(ff.VideoCodec) != "" {
			e.videoCodec = ff.VideoCodec
		}
		if strings.TrimSpace(ff.AudioCodec) != "" {
			e.audioCodec = ff.AudioCodec
		}
	}
	return e
}

// ProbeDuration 调用 ffprobe 获取时长（秒）
func (e *FFmpegExecutor) ProbeDuration(ctx context.Context, sink port.LogSink, path string) (float64, error) {
	out, err := e.runner.Output(ctx, sink, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, fmt.Errorf("%s returned non-number %q", filepath.Base(e.ffprobe), raw)
	}
	return val, nil
}

// Mux 用 audio 替换 video 的音轨
func (e *FFmpegExecutor) Mux(ctx context.Context, sink port.LogSink, video, audio, out string) error {
	return e.runner.Run(ctx, sink, e.ffmpeg,
		"-y",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", e.videoCodec,
		"-c:a", e.audioCodec,
		"-shortest",
		"-movflags", "+faststart",
		out,
	)
}

// Concat writes the concat demuxer list and joins inputs in order.
func (e *FFmpegExecutor) Concat(ctx context.Context, sink port.LogSink, inputs []string, listFile, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}
	if err := os.WriteFile(listFile, []byte(ConcatList(inputs)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return e.runner.Run(ctx, sink, e.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", e.videoCodec,
		"-c:a", e.audioCodec,
		"-movflags", "+faststart",
		out,
	)
}

// ConcatList renders the concat demuxer list. Paths are made absolute since
// ffmpeg resolves relative entries against the list file's directory.
func ConcatList(inputs []string) string {
	lines := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if abs, err := filepath.Abs(in); err == nil {
			in = abs
		}
		lines = append(lines, "file '"+strings.ReplaceAll(in, "'", `'\''`)+"'")
	}
	return strings.Join(lines, "\n") + "\n"
}

package gateway

import (
	"context"

	"manim-service/ddd/domain/port"
)

// MediaToolkit wraps the audio/video command line tools.
type MediaToolkit interface {
	// ProbeDuration returns the duration of a media file in seconds.
	ProbeDuration(ctx context.Context, sink port.LogSink, path string) (float64, error)
	// Mux replaces the audio of video with audio and writes out.
	Mux(ctx context.Context, sink port.LogSink, video, audio, out string) error
	// Concat joins inputs in order into out, using listFile as the concat list.
	Concat(ctx context.Context, sink port.LogSink, inputs []string, listFile, out string) error
}

// RenderRequest describes one scene render.
type RenderRequest struct {
	ScriptPath string
	ClassName  string
	// MediaDir is private to this scene.
	MediaDir string
	// OutputName is the requested file name without extension.
	OutputName string
}

// SceneRenderer turns a scene script into a video file and returns its path.
type SceneRenderer interface {
	Render(ctx context.Context, sink port.LogSink, req RenderRequest) (string, error)
}

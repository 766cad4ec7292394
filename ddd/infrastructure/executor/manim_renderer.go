package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/pkg/config"
)

// ErrNoVideoProduced is returned when the renderer left no mp4 behind.
var ErrNoVideoProduced = errors.New("manim did not produce an mp4")

// ManimRenderer implements gateway.SceneRenderer with the manim CLI.
type ManimRenderer struct {
	runner  port.CommandRunner
	binary  string
	quality string
}

var _ gateway.SceneRenderer = (*ManimRenderer)(nil)

func NewManimRenderer(cfg *config.Config, runner port.CommandRunner) *ManimRenderer {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	r := &ManimRenderer{runner: runner, binary: "manim", quality: "l"}
	if cfg != nil {
		if strings.TrimSpace(cfg.Pipeline.Manim.BinaryPath) != "" {
			r.binary = cfg.Pipeline.Manim.BinaryPath
		}
		if q := strings.TrimSpace(cfg.Pipeline.Manim.Quality); q != "" {
			r.quality = q
		}
	}
	return r
}

// Render invokes manim for one scene class. The output file is requested by
// name; when manim puts it somewhere else the newest mp4 under MediaDir wins.
func (r *ManimRenderer) Render(ctx context.Context, sink port.LogSink, req gateway.RenderRequest) (string, error) {
	if err := os.MkdirAll(req.MediaDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	// mtime granularity can be coarse
	started := time.Now().Add(-time.Second)
	args := []string{
		"-q" + r.quality,
		"--format=mp4",
		"--media_dir", req.MediaDir,
		"--custom_folders",
	}
	if req.OutputName != "" {
		args = append(args, "-o", req.OutputName)
	}
	args = append(args, req.ScriptPath, req.ClassName)
	if err := r.runner.Run(ctx, sink, r.binary, args...); err != nil {
		return "", err
	}
	return LocateVideo(req.MediaDir, req.OutputName, started)
}

// LocateVideo finds the rendered file under dir: an mp4 named name wins,
// otherwise the most recently modified mp4.
func LocateVideo(dir, name string, notBefore time.Time) (string, error) {
	var (
		named     string
		newest    string
		newestMod time.Time
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "partial_movie_files" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if name != "" && strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())) == name && !info.ModTime().Before(notBefore) {
			named = path
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan render output: %w", err)
	}
	if named != "" {
		return named, nil
	}
	if newest == "" {
		return "", ErrNoVideoProduced
	}
	return newest, nil
}

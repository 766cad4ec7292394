package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/ddd/domain/repo"
	"manim-service/ddd/domain/vo"
	"manim-service/pkg/logger"
)

const (
	scriptSystemPromptFmt = "You create short educational Manim videos. Output ONLY a script alternating narration and visualization blocks using this exact format: <nar> ... <nar> and <viz> ... <viz>. " +
		"Create %d to %d segments total. Narration should be concise. Visualization should be concrete and implementable in Manim."
	sceneSystemPrompt = "You write Manim Community Edition Python code. Return ONLY a Python code block containing a single Scene class. " +
		"No prose. Use from manim import * at top. The class name must be GenScene."
	sceneUserPromptFmt = "Write a Manim scene for this visualization (15-25 seconds max):\n%s"

	// FinalVideoName is the file name of the finished artifact inside a job directory.
	FinalVideoName = "COMPLETE.mp4"
)

// ErrScriptUnparseable is returned when the generated script has no usable segments.
var ErrScriptUnparseable = errors.New("failed to parse <nar>/<viz> script")

// PipelineOptions tunes the orchestrator.
type PipelineOptions struct {
	WorkDir          string
	MinSegments      int
	MaxSegments      int
	FallbackDuration float64
}

// PipelineDeps are the collaborators of the orchestrator. Events and
// Observer are optional.
type PipelineDeps struct {
	Store    repo.JobStore
	LLM      gateway.LanguageModel
	Speech   gateway.SpeechSynthesizer
	Media    gateway.MediaToolkit
	Renderer gateway.SceneRenderer
	Events   gateway.JobEventPublisher
	Observer port.PipelineObserver
}

// PipelineService drives a render job through every stage and records each
// transition in the job store.
type PipelineService struct {
	store    repo.JobStore
	llm      gateway.LanguageModel
	speech   gateway.SpeechSynthesizer
	media    gateway.MediaToolkit
	renderer gateway.SceneRenderer
	events   gateway.JobEventPublisher
	observer port.PipelineObserver
	opts     PipelineOptions
}

func NewPipelineService(deps PipelineDeps, opts PipelineOptions) *PipelineService {
	if deps.Events == nil {
		deps.Events = gateway.NopEventPublisher{}
	}
	if deps.Observer == nil {
		deps.Observer = port.NopObserver{}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = ".manim_jobs"
	}
	if opts.MinSegments <= 0 {
		opts.MinSegments = 3
	}
	if opts.MaxSegments < opts.MinSegments {
		opts.MaxSegments = opts.MinSegments + 3
	}
	if opts.FallbackDuration <= 0 {
		opts.FallbackDuration = 12
	}
	return &PipelineService{
		store:    deps.Store,
		llm:      deps.LLM,
		speech:   deps.Speech,
		media:    deps.Media,
		renderer: deps.Renderer,
		events:   deps.Events,
		observer: deps.Observer,
		opts:     opts,
	}
}

// JobDir is the working directory of a job.
func (p *PipelineService) JobDir(job *entity.RenderJob) string {
	return filepath.Join(p.opts.WorkDir, job.ID()+"-"+Slug(job.Prompt()))
}

// Run executes the job to a terminal state. It never returns an error:
// every failure ends up on the job itself.
func (p *PipelineService) Run(ctx context.Context, jobID string) {
	job, ok := p.store.GetJob(ctx, jobID)
	if !ok {
		logger.Warn("pipeline started for unknown job", map[string]interface{}{"job_id": jobID})
		return
	}
	if job.Phase() != vo.PhaseQueued {
		logger.Warn("pipeline started for a job that is not queued", map[string]interface{}{
			"job_id": jobID, "step": string(job.Step()),
		})
		return
	}

	r := &pipelineRun{
		svc:      p,
		jobID:    job.ID(),
		clientID: job.ClientID(),
		prompt:   job.Prompt(),
		dir:      p.JobDir(job),
		started:  time.Now(),
	}
	if err := r.execute(ctx); err != nil {
		r.fail(ctx, err)
		return
	}
	r.succeed(ctx)
}

// pipelineRun holds the per-job artifacts passed between stages.
type pipelineRun struct {
	svc      *PipelineService
	jobID    string
	clientID string
	prompt   string
	dir      string
	started  time.Time

	script    Script
	audio     []string
	scenes    []string
	durations []float64
	processed []string
	videos    []string
	final     string
}

type stage struct {
	phase vo.Phase
	run   func(ctx context.Context) error
}

func (r *pipelineRun) stages() []stage {
	return []stage{
		{vo.PhaseScript, r.generateScript},
		{vo.PhaseTTS, r.synthesizeSpeech},
		{vo.PhaseSceneCode, r.generateSceneCode},
		{vo.PhaseDuration, r.syncDurations},
		{vo.PhaseRender, r.renderScenes},
		{vo.PhaseStitch, r.stitch},
	}
}

func (r *pipelineRun) execute(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
	}()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	for _, st := range r.stages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.advance(ctx, st.phase)
		begin := time.Now()
		err := st.run(ctx)
		r.svc.observer.ObserveStage(ctx, st.phase.Step(), time.Since(begin), err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *pipelineRun) advance(ctx context.Context, phase vo.Phase) {
	r.svc.store.UpdateJob(ctx, r.jobID, entity.Advance(phase))
	logger.WithJob(r.jobID, string(phase.Step())).Debug("stage started")
	r.publish(ctx, phase, "")
}

func (r *pipelineRun) succeed(ctx context.Context) {
	// terminal bookkeeping must survive a cancelled run context
	ctx = context.WithoutCancel(ctx)
	r.log(ctx, "DONE: "+r.final)
	r.svc.store.UpdateJob(ctx, r.jobID, entity.Succeed(r.final))
	r.svc.store.RetireJob(ctx, r.jobID)
	r.publish(ctx, vo.PhaseDone, "")
	r.svc.observer.ObserveJob(ctx, vo.JobStatusSucceeded, time.Since(r.started))
	logger.WithJob(r.jobID, string(vo.JobStepDone)).
		WithField("elapsed", time.Since(r.started).String()).
		Info("render job succeeded")
}

func (r *pipelineRun) fail(ctx context.Context, err error) {
	ctx = context.WithoutCancel(ctx)
	msg := err.Error()
	r.log(ctx, "ERROR: "+msg)
	r.svc.store.UpdateJob(ctx, r.jobID, entity.Fail(msg))
	r.svc.store.RetireJob(ctx, r.jobID)
	r.publish(ctx, vo.PhaseError, msg)
	r.svc.observer.ObserveJob(ctx, vo.JobStatusFailed, time.Since(r.started))
	logger.WithJob(r.jobID, string(vo.JobStepError)).WithError(err).Warn("render job failed")
}

func (r *pipelineRun) publish(ctx context.Context, phase vo.Phase, errMsg string) {
	evt := gateway.JobEvent{
		JobID:     r.jobID,
		ClientID:  r.clientID,
		Status:    string(phase.Status()),
		Step:      string(phase.Step()),
		Error:     errMsg,
		HasVideo:  phase == vo.PhaseDone,
		Timestamp: time.Now(),
	}
	if err := r.svc.events.Publish(ctx, evt); err != nil {
		logger.WithJob(r.jobID, evt.Step).WithError(err).Warn("publish job event failed")
	}
}

func (r *pipelineRun) log(ctx context.Context, line string) {
	r.svc.store.AppendLog(ctx, r.jobID, line)
}

// sink streams command output into the job log.
func (r *pipelineRun) sink(ctx context.Context) port.LogSink {
	return func(line string) { r.log(ctx, line) }
}

func (r *pipelineRun) path(parts ...string) string {
	return filepath.Join(append([]string{r.dir}, parts...)...)
}

func (r *pipelineRun) generateScript(ctx context.Context) error {
	r.log(ctx, "Generating <nar>/<viz> script...")
	system := fmt.Sprintf(scriptSystemPromptFmt, r.svc.opts.MinSegments, r.svc.opts.MaxSegments)
	raw, err := r.svc.llm.Complete(ctx, system, r.prompt)
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}
	if err := writeText(r.path("script.txt"), raw); err != nil {
		return err
	}

	script := ParseScript(raw)
	if script.Empty() {
		return ErrScriptUnparseable
	}
	if n, v := len(script.Narrations), len(script.Visualizations); n != v {
		r.log(ctx, fmt.Sprintf("Segment count mismatch (%d narration, %d visualization), using the first %d", n, v, script.Pairs()))
		script = script.Truncate(script.Pairs())
	}
	r.script = script

	if err := writeJSON(r.path("nar.json"), script.Narrations); err != nil {
		return err
	}
	return writeJSON(r.path("viz.json"), script.Visualizations)
}

func (r *pipelineRun) synthesizeSpeech(ctx context.Context) error {
	n := len(r.script.Narrations)
	r.log(ctx, fmt.Sprintf("Generating TTS audio for %d segments...", n))
	if err := os.MkdirAll(r.path("audio"), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	r.audio = make([]string, 0, n)
	for i, text := range r.script.Narrations {
		out := r.path("audio", fmt.Sprintf("script_%d.mp3", i+1))
		if err := r.svc.speech.Synthesize(ctx, text, out); err != nil {
			return fmt.Errorf("tts segment %d failed: %w", i+1, err)
		}
		r.audio = append(r.audio, out)
		r.log(ctx, fmt.Sprintf("TTS %d/%d written: %s", i+1, n, filepath.Base(out)))
	}
	return nil
}

func (r *pipelineRun) generateSceneCode(ctx context.Context) error {
	r.log(ctx, fmt.Sprintf("Generating Manim code for %d scenes...", len(r.script.Visualizations)))
	if err := os.MkdirAll(r.path("python_scripts"), 0o755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}

	r.scenes = make([]string, 0, len(r.script.Visualizations))
	for i, viz := range r.script.Visualizations {
		raw, err := r.svc.llm.Complete(ctx, sceneSystemPrompt, fmt.Sprintf(sceneUserPromptFmt, viz))
		if err != nil {
			return fmt.Errorf("scene %d code generation failed: %w", i+1, err)
		}
		if err := writeText(r.path(fmt.Sprintf("manim_raw_%d.txt", i+1)), raw); err != nil {
			return err
		}

		code := WrapSceneCode(ForceClassName(ExtractCode(raw), SceneClassName(i)))
		out := r.path("python_scripts", fmt.Sprintf("script_%d.py", i+1))
		if err := writeText(out, code); err != nil {
			return err
		}
		r.scenes = append(r.scenes, out)
		r.log(ctx, "Manim script written: "+filepath.Base(out))
	}
	return nil
}

// syncDurations probes every audio file and patches the paired scene so its
// animations last as long as the narration.
func (r *pipelineRun) syncDurations(ctx context.Context) error {
	r.log(ctx, "Computing audio durations...")
	r.durations = make([]float64, 0, len(r.audio))
	for i, audio := range r.audio {
		d, err := r.svc.media.ProbeDuration(ctx, r.sink(ctx), audio)
		if err != nil {
			return fmt.Errorf("probe audio %d failed: %w", i+1, err)
		}
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			r.log(ctx, fmt.Sprintf("Audio %d has no usable duration, using %.2fs", i+1, r.svc.opts.FallbackDuration))
			d = r.svc.opts.FallbackDuration
		}
		r.durations = append(r.durations, d)
		r.log(ctx, fmt.Sprintf("Audio %d: %.2fs", i+1, d))
	}

	if err := os.MkdirAll(r.path("processed"), 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	r.processed = make([]string, 0, len(r.scenes))
	for i, scene := range r.scenes {
		src, err := os.ReadFile(scene)
		if err != nil {
			return fmt.Errorf("read scene %d: %w", i+1, err)
		}
		target := r.svc.opts.FallbackDuration
		if i < len(r.durations) {
			target = r.durations[i]
		}
		patched, patch := PatchSceneTiming(string(src), target)
		if patch.Applied {
			r.log(ctx, fmt.Sprintf("Scene %d: %d play actions, %.2fs each", i+1, patch.PlayCount, patch.PerAction))
		} else {
			r.log(ctx, fmt.Sprintf("Scene %d left unpatched", i+1))
		}

		out := r.path("processed", fmt.Sprintf("script_%d_processed.py", i+1))
		if err := writeText(out, patched); err != nil {
			return err
		}
		r.processed = append(r.processed, out)
	}
	return nil
}

func (r *pipelineRun) renderScenes(ctx context.Context) error {
	r.log(ctx, "Rendering scenes with Manim...")
	r.videos = make([]string, 0, len(r.processed))
	for i, script := range r.processed {
		video, err := r.svc.renderer.Render(ctx, r.sink(ctx), gateway.RenderRequest{
			ScriptPath: script,
			ClassName:  SceneClassName(i),
			MediaDir:   r.path("render", fmt.Sprintf("scene_%d", i+1)),
			OutputName: fmt.Sprintf("scene_%d", i+1),
		})
		if err != nil {
			return fmt.Errorf("render scene %d failed: %w", i+1, err)
		}
		r.videos = append(r.videos, video)
		rel, relErr := filepath.Rel(r.dir, video)
		if relErr != nil {
			rel = video
		}
		r.log(ctx, fmt.Sprintf("Rendered scene %d: %s", i+1, rel))
	}
	return nil
}

func (r *pipelineRun) stitch(ctx context.Context) error {
	r.log(ctx, "Muxing audio into scene videos...")
	if err := os.MkdirAll(r.path("muxed"), 0o755); err != nil {
		return fmt.Errorf("create muxed dir: %w", err)
	}

	muxed := make([]string, 0, len(r.videos))
	for i, video := range r.videos {
		out := r.path("muxed", fmt.Sprintf("scene_%d_with_audio.mp4", i+1))
		if err := r.svc.media.Mux(ctx, r.sink(ctx), video, r.audio[i], out); err != nil {
			return fmt.Errorf("mux scene %d failed: %w", i+1, err)
		}
		muxed = append(muxed, out)
	}

	r.log(ctx, "Concatenating into final MP4...")
	final := r.path(FinalVideoName)
	if err := r.svc.media.Concat(ctx, r.sink(ctx), muxed, r.path("concat.txt"), final); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	r.final = final
	return nil
}

func writeText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeText(path, string(data))
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/port"
	"manim-service/ddd/domain/vo"
	"manim-service/ddd/infrastructure/store"
)

const sceneAnswer = "Sure:\n```python\nfrom manim import *\n\nclass GenScene(Scene):\n    def construct(self):\n        c = Circle()\n        self.play(Create(c))\n```"

type fakeLLM struct {
	script   string
	err      error
	sceneErr error
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	if system == sceneSystemPrompt {
		if f.sceneErr != nil {
			return "", f.sceneErr
		}
		return sceneAnswer, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return f.script, nil
}

type fakeSpeech struct {
	failOn string
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, outPath string) error {
	if f.failOn != "" && text == f.failOn {
		return errors.New("quota exceeded")
	}
	return os.WriteFile(outPath, []byte("audio:"+text), 0o644)
}

// fakeMedia reports the byte length of an audio file as its duration and
// records mux/concat inputs in the output files.
type fakeMedia struct {
	zeroDuration bool
}

func (f *fakeMedia) ProbeDuration(_ context.Context, _ port.LogSink, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if f.zeroDuration {
		return 0, nil
	}
	return float64(len(data)), nil
}

func (f *fakeMedia) Mux(_ context.Context, sink port.LogSink, video, audio, out string) error {
	v, err := os.ReadFile(video)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audio)
	if err != nil {
		return err
	}
	sink("$ mux " + filepath.Base(out))
	return os.WriteFile(out, []byte("["+string(v)+"|"+string(a)+"]"), 0o644)
}

func (f *fakeMedia) Concat(_ context.Context, _ port.LogSink, inputs []string, listFile, out string) error {
	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(inputs, "\n")), 0o644); err != nil {
		return err
	}
	return os.WriteFile(out, []byte(strings.Join(parts, "\n")), 0o644)
}

type fakeRenderer struct {
	failScene string
}

func (f *fakeRenderer) Render(_ context.Context, sink port.LogSink, req gateway.RenderRequest) (string, error) {
	if req.ClassName == f.failScene {
		sink("Traceback (most recent call last):")
		return "", errors.New("manim exited with code 1")
	}
	if _, err := os.Stat(req.ScriptPath); err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.MediaDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(req.MediaDir, req.OutputName+".mp4")
	return out, os.WriteFile(out, []byte("video:"+req.ClassName), 0o644)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []gateway.JobEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt gateway.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

type pipelineFixture struct {
	store    *store.MemoryJobStore
	llm      *fakeLLM
	speech   *fakeSpeech
	media    *fakeMedia
	renderer *fakeRenderer
	events   *recordingPublisher
	svc      *PipelineService
}

func newPipelineFixture(t *testing.T, script string) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store:    store.NewMemoryJobStore(400),
		llm:      &fakeLLM{script: script},
		speech:   &fakeSpeech{},
		media:    &fakeMedia{},
		renderer: &fakeRenderer{},
		events:   &recordingPublisher{},
	}
	f.svc = NewPipelineService(PipelineDeps{
		Store:    f.store,
		LLM:      f.llm,
		Speech:   f.speech,
		Media:    f.media,
		Renderer: f.renderer,
		Events:   f.events,
	}, PipelineOptions{WorkDir: t.TempDir()})
	return f
}

func (f *pipelineFixture) submit(t *testing.T, clientID, prompt string) *entity.RenderJob {
	t.Helper()
	job := entity.NewRenderJob(clientID, prompt)
	if err := f.store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func (f *pipelineFixture) get(t *testing.T, id string) *entity.RenderJob {
	t.Helper()
	job, ok := f.store.GetJob(context.Background(), id)
	if !ok {
		t.Fatalf("job %s missing", id)
	}
	return job
}

func containsLine(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

const threeSegments = "<nar>one<nar><viz>first picture<viz>\n<nar>two<nar><viz>second picture<viz>\n<nar>three<nar><viz>third picture<viz>"

func TestPipelineRunSucceeds(t *testing.T) {
	f := newPipelineFixture(t, threeSegments)
	job := f.submit(t, "client-1", "Explain the Pythagorean theorem!")

	f.svc.Run(context.Background(), job.ID())

	got := f.get(t, job.ID())
	if got.Phase() != vo.PhaseDone || got.Status() != vo.JobStatusSucceeded {
		t.Fatalf("phase = %s, error = %q", got.Phase(), got.Error())
	}
	dir := f.svc.JobDir(job)
	if !strings.HasSuffix(dir, job.ID()+"-explain-the-pythagorean-theorem") {
		t.Errorf("unexpected job dir %s", dir)
	}
	if got.VideoPath() != filepath.Join(dir, FinalVideoName) || !got.HasVideo() {
		t.Errorf("video path = %q", got.VideoPath())
	}

	final, err := os.ReadFile(got.VideoPath())
	if err != nil {
		t.Fatal(err)
	}
	want := "[video:Script1|audio:one]\n[video:Script2|audio:two]\n[video:Script3|audio:three]"
	if string(final) != want {
		t.Errorf("final artifact = %q, want %q", final, want)
	}

	if _, ok := f.store.GetActiveJobID(context.Background(), "client-1"); ok {
		t.Error("finished job must be retired from the active index")
	}

	logs := got.Logs()
	if !strings.HasPrefix(logs[len(logs)-1], "DONE: ") {
		t.Errorf("last log line = %q", logs[len(logs)-1])
	}
	for _, want := range []string{"Generating <nar>/<viz> script...", "TTS 3/3 written: script_3.mp3", "Audio 1: 9.00s", "Rendered scene 2: " + filepath.Join("render", "scene_2", "scene_2.mp4"), "$ mux scene_1_with_audio.mp4"} {
		if !containsLine(logs, want) {
			t.Errorf("logs missing %q: %q", want, logs)
		}
	}

	for _, name := range []string{"script.txt", "nar.json", "viz.json", "manim_raw_1.txt", "concat.txt",
		filepath.Join("python_scripts", "script_2.py"), filepath.Join("audio", "script_3.mp3")} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	scene, err := os.ReadFile(filepath.Join(dir, "python_scripts", "script_1.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(scene), "from manim import *\nfrom math import *\n\n") || !strings.Contains(string(scene), "class Script1(Scene):") {
		t.Errorf("scene code not normalized: %q", scene)
	}
	processed, err := os.ReadFile(filepath.Join(dir, "processed", "script_1_processed.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(processed), "runtime = 9") || !strings.Contains(string(processed), "self.play(Create(c), run_time=dur)") {
		t.Errorf("scene timing not patched: %q", processed)
	}
}

func TestPipelinePublishesEveryPhase(t *testing.T) {
	f := newPipelineFixture(t, threeSegments)
	job := f.submit(t, "client-1", "circles")

	f.svc.Run(context.Background(), job.ID())

	var steps []string
	for _, evt := range f.events.events {
		if evt.JobID != job.ID() || evt.ClientID != "client-1" {
			t.Fatalf("unexpected event %+v", evt)
		}
		steps = append(steps, evt.Step)
	}
	want := "script,tts,manim_code,duration,render,stitch,done"
	if strings.Join(steps, ",") != want {
		t.Errorf("steps = %v, want %s", steps, want)
	}
	if last := f.events.events[len(f.events.events)-1]; !last.HasVideo || last.Status != "succeeded" {
		t.Errorf("final event = %+v", last)
	}
}

func TestPipelineFailures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		setup   func(f *pipelineFixture)
		wantErr string
		wantLog string
	}{
		{
			name:    "unparseable script",
			script:  "Here is a lovely video about circles.",
			wantErr: "failed to parse <nar>/<viz> script",
		},
		{
			name:    "no visualization blocks",
			script:  "<nar>only narration<nar>",
			wantErr: "failed to parse <nar>/<viz> script",
		},
		{
			name:    "script generation error",
			script:  threeSegments,
			setup:   func(f *pipelineFixture) { f.llm.err = errors.New("401 unauthorized") },
			wantErr: "script generation failed: 401 unauthorized",
		},
		{
			name:    "tts error on one segment",
			script:  threeSegments,
			setup:   func(f *pipelineFixture) { f.speech.failOn = "two" },
			wantErr: "tts segment 2 failed: quota exceeded",
		},
		{
			name:    "scene code error",
			script:  threeSegments,
			setup:   func(f *pipelineFixture) { f.llm.sceneErr = errors.New("timeout") },
			wantErr: "scene 1 code generation failed: timeout",
		},
		{
			name:    "render error keeps tool output",
			script:  threeSegments,
			setup:   func(f *pipelineFixture) { f.renderer.failScene = "Script3" },
			wantErr: "render scene 3 failed: manim exited with code 1",
			wantLog: "Traceback (most recent call last):",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, tt.script)
			if tt.setup != nil {
				tt.setup(f)
			}
			job := f.submit(t, "client-1", "prompt")

			f.svc.Run(context.Background(), job.ID())

			got := f.get(t, job.ID())
			if got.Status() != vo.JobStatusFailed || got.Step() != vo.JobStepError {
				t.Fatalf("status = %s, step = %s", got.Status(), got.Step())
			}
			if got.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", got.Error(), tt.wantErr)
			}
			if got.HasVideo() {
				t.Error("failed job must not expose a video")
			}
			logs := got.Logs()
			if logs[len(logs)-1] != "ERROR: "+tt.wantErr {
				t.Errorf("last log line = %q", logs[len(logs)-1])
			}
			if tt.wantLog != "" && !containsLine(logs, tt.wantLog) {
				t.Errorf("logs missing %q", tt.wantLog)
			}
			if _, ok := f.store.GetActiveJobID(context.Background(), "client-1"); ok {
				t.Error("failed job must be retired from the active index")
			}
		})
	}
}

func TestPipelineSegmentMismatchUsesCommonPrefix(t *testing.T) {
	f := newPipelineFixture(t, "<nar>one<nar><viz>a<viz><nar>two<nar><viz>b<viz><nar>three<nar>")
	job := f.submit(t, "client-1", "prompt")

	f.svc.Run(context.Background(), job.ID())

	got := f.get(t, job.ID())
	if got.Status() != vo.JobStatusSucceeded {
		t.Fatalf("status = %s, error = %q", got.Status(), got.Error())
	}
	final, _ := os.ReadFile(got.VideoPath())
	if string(final) != "[video:Script1|audio:one]\n[video:Script2|audio:two]" {
		t.Errorf("final artifact = %q", final)
	}
	if !containsLine(got.Logs(), "Segment count mismatch (3 narration, 2 visualization), using the first 2") {
		t.Errorf("mismatch not logged: %q", got.Logs())
	}
}

func TestPipelineFallbackDuration(t *testing.T) {
	f := newPipelineFixture(t, "<nar>one<nar><viz>a<viz>")
	f.media.zeroDuration = true
	job := f.submit(t, "client-1", "prompt")

	f.svc.Run(context.Background(), job.ID())

	processed, err := os.ReadFile(filepath.Join(f.svc.JobDir(job), "processed", "script_1_processed.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(processed), "runtime = 12") {
		t.Errorf("fallback duration not applied: %q", processed)
	}
}

func TestPipelineSupersededJobDoesNotRetireNewer(t *testing.T) {
	f := newPipelineFixture(t, threeSegments)
	older := f.submit(t, "client-1", "first")
	newer := f.submit(t, "client-1", "second")

	f.svc.Run(context.Background(), older.ID())

	if got := f.get(t, older.ID()); got.Status() != vo.JobStatusSucceeded {
		t.Fatalf("superseded job should still finish, got %s", got.Status())
	}
	active, ok := f.store.GetActiveJobID(context.Background(), "client-1")
	if !ok || active != newer.ID() {
		t.Errorf("active = %q, %v; want %q", active, ok, newer.ID())
	}
}

func TestPipelineIgnoresUnknownAndStartedJobs(t *testing.T) {
	f := newPipelineFixture(t, threeSegments)
	f.svc.Run(context.Background(), "missing")
	if len(f.events.events) != 0 {
		t.Fatal("unknown job must not produce events")
	}

	job := f.submit(t, "client-1", "prompt")
	f.store.UpdateJob(context.Background(), job.ID(), entity.Advance(vo.PhaseScript))
	f.svc.Run(context.Background(), job.ID())
	if got := f.get(t, job.ID()); got.Phase() != vo.PhaseScript {
		t.Errorf("running job must be left alone, got %s", got.Phase())
	}
}

func TestPipelineCancelledContextFailsJob(t *testing.T) {
	f := newPipelineFixture(t, threeSegments)
	job := f.submit(t, "client-1", "prompt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.Run(ctx, job.ID())

	got := f.get(t, job.ID())
	if got.Status() != vo.JobStatusFailed || got.Error() != context.Canceled.Error() {
		t.Errorf("status = %s, error = %q", got.Status(), got.Error())
	}
}

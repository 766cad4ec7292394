package component

import (
	"context"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"manim-service/ddd/application/cqe"
	"manim-service/ddd/application/dto"
	"manim-service/ddd/domain/vo"
	"manim-service/pkg/config"
)

type fakeReader struct {
	msgs   chan kafka.Message
	closed chan struct{}
}

func newFakeReader() *fakeReader {
	return &fakeReader{msgs: make(chan kafka.Message, 4), closed: make(chan struct{})}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	close(r.closed)
	return nil
}

type recordingApp struct {
	mu   sync.Mutex
	reqs []cqe.StartRenderJobReq
	seen chan struct{}
}

func (a *recordingApp) StartJob(_ context.Context, req *cqe.StartRenderJobReq) (*dto.StartRenderJobDTO, error) {
	if err := req.Validate(); err != nil {
		a.seen <- struct{}{}
		return nil, err
	}
	a.mu.Lock()
	a.reqs = append(a.reqs, *req)
	a.mu.Unlock()
	a.seen <- struct{}{}
	return &dto.StartRenderJobDTO{JobID: "job-1", Status: "queued"}, nil
}

func (a *recordingApp) GetJob(context.Context, string) (*dto.RenderJobDTO, error) { return nil, nil }
func (a *recordingApp) OpenVideo(context.Context, string) (*dto.VideoDTO, error)  { return nil, nil }
func (a *recordingApp) Mode() vo.RunnerMode                                       { return vo.RunnerModeLocal }

func TestConsumerSubmitsMessages(t *testing.T) {
	app := &recordingApp{seen: make(chan struct{}, 4)}
	reader := newFakeReader()
	c := NewRenderJobConsumer(app, reader, "manim.job.requests")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	reader.msgs <- kafka.Message{Value: []byte(`not json`)}
	reader.msgs <- kafka.Message{Value: []byte(`{"clientId":"c1","prompt":""}`)}
	reader.msgs <- kafka.Message{Value: []byte(`{"clientId":"c1","prompt":"sine waves","jobId":"j-9"}`)}

	for i := 0; i < 2; i++ {
		select {
		case <-app.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("message not handled")
		}
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-reader.closed:
	default:
		t.Error("reader not closed")
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if len(app.reqs) != 1 || app.reqs[0].Prompt != "sine waves" || app.reqs[0].JobID != "j-9" {
		t.Errorf("reqs = %+v", app.reqs)
	}
}

func TestConsumerEnabled(t *testing.T) {
	p := &RenderJobConsumerPlugin{}
	cfg := &config.Config{}
	if p.Enabled(cfg) || p.Enabled(nil) {
		t.Error("disabled by default")
	}
	cfg.Kafka.Enabled = true
	cfg.Kafka.ConsumeRequests = true
	if !p.Enabled(cfg) {
		t.Error("expected enabled")
	}
}

package app

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/google/uuid"

	"manim-service/ddd/application/cqe"
	"manim-service/ddd/application/dto"
	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/gateway"
	"manim-service/ddd/domain/repo"
	"manim-service/ddd/domain/vo"
	"manim-service/pkg/errno"
	"manim-service/pkg/logger"
)

// Launcher hands a stored job to a background pipeline.
type Launcher interface {
	Launch(jobID string) error
}

type RenderApp interface {
	// StartJob 提交渲染任务，同一客户端有进行中任务时直接复用
	StartJob(ctx context.Context, req *cqe.StartRenderJobReq) (*dto.StartRenderJobDTO, error)
	// GetJob 查询任务状态
	GetJob(ctx context.Context, jobID string) (*dto.RenderJobDTO, error)
	// OpenVideo 打开成品视频流
	OpenVideo(ctx context.Context, jobID string) (*dto.VideoDTO, error)
	// Mode reports where jobs execute.
	Mode() vo.RunnerMode
}

// RenderAppOptions 应用层配置
type RenderAppOptions struct {
	Mode vo.RunnerMode
	// CredentialsPresent is false when the language or speech service has no key.
	CredentialsPresent bool
}

type renderAppImpl struct {
	store    repo.JobStore
	launcher Launcher
	worker   gateway.WorkerGateway
	opts     RenderAppOptions

	// dedup check and create are atomic per clientId within this process
	locks clientLocks
}

// clientLocks hands out one mutex per clientId and drops it once unused.
type clientLocks struct {
	mu sync.Mutex
	m  map[string]*clientLock
}

type clientLock struct {
	sync.Mutex
	refs int
}

func (l *clientLocks) lock(clientID string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*clientLock)
	}
	cl, ok := l.m[clientID]
	if !ok {
		cl = &clientLock{}
		l.m[clientID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.Lock()
	return func() {
		cl.Unlock()
		l.mu.Lock()
		if cl.refs--; cl.refs == 0 {
			delete(l.m, clientID)
		}
		l.mu.Unlock()
	}
}

func (l *clientLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// NewRenderApp builds the use cases. launcher is required in local mode,
// worker in remote mode.
func NewRenderApp(store repo.JobStore, launcher Launcher, worker gateway.WorkerGateway, opts RenderAppOptions) RenderApp {
	if opts.Mode == "" {
		opts.Mode = vo.RunnerModeLocal
	}
	return &renderAppImpl{
		store:    store,
		launcher: launcher,
		worker:   worker,
		opts:     opts,
	}
}

func (a *renderAppImpl) Mode() vo.RunnerMode { return a.opts.Mode }

func (a *renderAppImpl) StartJob(ctx context.Context, req *cqe.StartRenderJobReq) (*dto.StartRenderJobDTO, error) {
	if req == nil {
		return nil, errno.ErrInvalidParam
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := a.locks.lock(req.ClientID)
	defer unlock()

	if a.opts.Mode == vo.RunnerModeRemote {
		return a.startRemote(ctx, req)
	}
	return a.startLocal(ctx, req)
}

func (a *renderAppImpl) startLocal(ctx context.Context, req *cqe.StartRenderJobReq) (*dto.StartRenderJobDTO, error) {
	// 幂等：同一客户端已有进行中任务
	if active := a.activeJob(ctx, req.ClientID); active != nil {
		return reused(active.ID(), active.Status()), nil
	}
	// a delegating instance retrying the same job id; any other holder of the
	// id keeps it
	if req.JobID != "" {
		if existing, ok := a.store.GetJob(ctx, req.JobID); ok {
			if existing.ClientID() == req.ClientID && existing.IsActive() {
				return reused(existing.ID(), existing.Status()), nil
			}
			logger.Warn("Job id already in use", map[string]interface{}{
				"job_id":    req.JobID,
				"client_id": req.ClientID,
				"owner":     existing.ClientID(),
				"status":    existing.Status().String(),
			})
			return nil, errno.ErrJobIDConflict
		}
	}

	if !a.opts.CredentialsPresent {
		return nil, errno.ErrMissingCredential
	}
	if a.launcher == nil {
		return nil, errno.ErrInternalServer
	}

	job := entity.NewRenderJob(req.ClientID, req.Prompt)
	if req.JobID != "" {
		job = entity.NewRenderJobWithID(req.JobID, req.ClientID, req.Prompt)
	}
	if err := a.store.CreateJob(ctx, job); err != nil {
		// another client took the same id between the check and the create
		if req.JobID != "" {
			if _, taken := a.store.GetJob(ctx, req.JobID); taken {
				return nil, errno.NewBizError(errno.ErrJobIDConflict, err)
			}
		}
		return nil, errno.NewBizError(errno.ErrJobStoreUnavailable, err)
	}

	if err := a.launcher.Launch(job.ID()); err != nil {
		// the job never ran, so it must not keep the client's slot
		bg := context.WithoutCancel(ctx)
		a.store.AppendLog(bg, job.ID(), "ERROR: "+err.Error())
		a.store.UpdateJob(bg, job.ID(), entity.Fail(err.Error()))
		a.store.RetireJob(bg, job.ID())
		return nil, err
	}

	logger.Info("Render job queued", map[string]interface{}{
		"job_id":    job.ID(),
		"client_id": job.ClientID(),
		"mode":      a.opts.Mode.String(),
	})
	return &dto.StartRenderJobDTO{JobID: job.ID(), Status: job.Status().String(), Reused: false}, nil
}

// activeJob returns the client's job while it is still queued or running.
func (a *renderAppImpl) activeJob(ctx context.Context, clientID string) *entity.RenderJob {
	id, ok := a.store.GetActiveJobID(ctx, clientID)
	if !ok {
		return nil
	}
	job, ok := a.store.GetJob(ctx, id)
	if !ok || !job.IsActive() {
		return nil
	}
	return job
}

func (a *renderAppImpl) startRemote(ctx context.Context, req *cqe.StartRenderJobReq) (*dto.StartRenderJobDTO, error) {
	if a.worker == nil {
		return nil, errno.ErrWorkerNotConfigured
	}

	if id, ok := a.store.GetActiveJobID(ctx, req.ClientID); ok {
		remote, err := a.worker.Status(ctx, id)
		switch {
		case err == nil && vo.JobStatus(remote.Status).IsActive():
			return reused(remote.ID, vo.JobStatus(remote.Status)), nil
		case err == nil, errors.Is(err, errno.ErrJobNotFound):
			// finished or forgotten by the worker
			a.store.RetireJob(ctx, id)
		default:
			return nil, err
		}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	res, err := a.worker.Start(ctx, gateway.WorkerStartRequest{
		JobID:    jobID,
		ClientID: req.ClientID,
		Prompt:   req.Prompt,
	})
	if err != nil {
		logger.Warn("Remote start failed", map[string]interface{}{
			"client_id": req.ClientID,
			"error":     err.Error(),
		})
		return nil, err
	}

	// local mirror so the per-client dedup works in remote mode too
	mirror := entity.NewRenderJobWithID(res.JobID, req.ClientID, req.Prompt)
	if err := a.store.CreateJob(ctx, mirror); err != nil {
		logger.Warnf("Remote job mirror not stored job_id=%s error=%v", res.JobID, err)
	}

	status := res.Status
	if status == "" {
		status = vo.JobStatusQueued.String()
	}
	logger.Info("Render job delegated", map[string]interface{}{
		"job_id":    res.JobID,
		"client_id": req.ClientID,
		"reused":    res.Reused,
	})
	return &dto.StartRenderJobDTO{JobID: res.JobID, Status: status, Reused: res.Reused}, nil
}

func reused(id string, status vo.JobStatus) *dto.StartRenderJobDTO {
	return &dto.StartRenderJobDTO{JobID: id, Status: status.String(), Reused: true}
}

func (a *renderAppImpl) GetJob(ctx context.Context, jobID string) (*dto.RenderJobDTO, error) {
	q := &cqe.RenderJobQuery{JobID: jobID}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if a.opts.Mode == vo.RunnerModeRemote {
		if a.worker == nil {
			return nil, errno.ErrWorkerNotConfigured
		}
		remote, err := a.worker.Status(ctx, q.JobID)
		if err != nil {
			return nil, err
		}
		return dto.NewRenderJobDTOFromRemote(remote), nil
	}

	job, ok := a.store.GetJob(ctx, q.JobID)
	if !ok {
		return nil, errno.ErrJobNotFound
	}
	return dto.NewRenderJobDTO(job), nil
}

func (a *renderAppImpl) OpenVideo(ctx context.Context, jobID string) (*dto.VideoDTO, error) {
	q := &cqe.RenderJobQuery{JobID: jobID}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if a.opts.Mode == vo.RunnerModeRemote {
		if a.worker == nil {
			return nil, errno.ErrWorkerNotConfigured
		}
		stream, err := a.worker.OpenVideo(ctx, q.JobID)
		if err != nil {
			return nil, err
		}
		return &dto.VideoDTO{Body: stream.Body, ContentLength: stream.ContentLength, ContentType: stream.ContentType}, nil
	}

	job, ok := a.store.GetJob(ctx, q.JobID)
	if !ok {
		return nil, errno.ErrJobNotFound
	}
	if !job.HasVideo() {
		return nil, errno.ErrVideoNotReady
	}

	f, err := os.Open(job.VideoPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errno.NewBizError(errno.ErrVideoMissing, err)
		}
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	return &dto.VideoDTO{Body: f, ContentLength: info.Size(), ContentType: "video/mp4"}, nil
}

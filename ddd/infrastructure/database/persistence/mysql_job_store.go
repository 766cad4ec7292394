package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/repo"
	"manim-service/ddd/infrastructure/database/convertor"
	"manim-service/ddd/infrastructure/database/dao"
	"manim-service/ddd/infrastructure/database/po"
	"manim-service/pkg/logger"
)

const defaultLogCap = 400

// MysqlJobStore persists jobs and the active index in MySQL.
type MysqlJobStore struct {
	jobDao    *dao.RenderJobDAO
	convertor *convertor.RenderJobConvertor
	logCap    int
	now       func() time.Time
}

var _ repo.JobStore = (*MysqlJobStore)(nil)

func NewMysqlJobStore(db *gorm.DB, logCap int) *MysqlJobStore {
	if logCap <= 0 {
		logCap = defaultLogCap
	}
	return &MysqlJobStore{
		jobDao:    dao.NewRenderJobDAO(db),
		convertor: convertor.NewRenderJobConvertor(),
		logCap:    logCap,
		now:       time.Now,
	}
}

// Migrate creates the tables when they are missing.
func (s *MysqlJobStore) Migrate() error {
	return s.jobDao.AutoMigrate()
}

func (s *MysqlJobStore) CreateJob(ctx context.Context, job *entity.RenderJob) error {
	if job == nil {
		return entity.NewDomainError("nil job")
	}
	return s.jobDao.CreateWithActive(ctx, s.convertor.ToPO(job))
}

func (s *MysqlJobStore) GetJob(ctx context.Context, id string) (*entity.RenderJob, bool) {
	row, err := s.jobDao.FindByJobID(ctx, id)
	if err != nil {
		logger.Warnf("mysql get job failed job_id=%s error=%v", id, err)
		return nil, false
	}
	if row == nil {
		return nil, false
	}
	job, err := s.convertor.ToEntity(row)
	if err != nil {
		logger.Warnf("mysql job row unreadable job_id=%s error=%v", id, err)
		return nil, false
	}
	return job, true
}

func (s *MysqlJobStore) GetActiveJobID(ctx context.Context, clientID string) (string, bool) {
	active, err := s.jobDao.FindActive(ctx, clientID)
	if err != nil {
		logger.Warnf("mysql get active job failed client_id=%s error=%v", clientID, err)
		return "", false
	}
	if active == nil {
		return "", false
	}
	return active.JobID, true
}

func (s *MysqlJobStore) UpdateJob(ctx context.Context, id string, u entity.JobUpdate) {
	err := s.jobDao.MutateLocked(ctx, id, func(row *po.RenderJob) map[string]interface{} {
		job, err := s.convertor.ToEntity(row)
		if err != nil {
			logger.Warnf("mysql job row unreadable job_id=%s error=%v", id, err)
			return nil
		}
		if err := job.Apply(u, s.now()); err != nil {
			logger.Warnf("job update ignored job_id=%s error=%v", id, err)
			return nil
		}
		return s.convertor.StateColumns(job)
	})
	if err != nil {
		logger.Warnf("mysql update job failed job_id=%s error=%v", id, err)
	}
}

func (s *MysqlJobStore) AppendLog(ctx context.Context, id, line string) {
	err := s.jobDao.MutateLocked(ctx, id, func(row *po.RenderJob) map[string]interface{} {
		logs, err := s.convertor.DecodeLogs(row.Logs)
		if err != nil {
			logs = []string{}
		}
		logs = append(logs, line)
		if len(logs) > s.logCap {
			logs = logs[len(logs)-s.logCap:]
		}
		return map[string]interface{}{
			"logs":       s.convertor.EncodeLogs(logs),
			"updated_at": s.now(),
		}
	})
	if err != nil {
		logger.Warnf("mysql append log failed job_id=%s error=%v", id, err)
	}
}

func (s *MysqlJobStore) RetireJob(ctx context.Context, id string) {
	row, err := s.jobDao.FindByJobID(ctx, id)
	if err != nil || row == nil {
		if err != nil {
			logger.Warnf("mysql retire job failed job_id=%s error=%v", id, err)
		}
		return
	}
	if err := s.jobDao.DeleteActiveIfMatch(ctx, row.ClientID, id); err != nil {
		logger.Warnf("mysql retire job failed job_id=%s error=%v", id, err)
	}
}

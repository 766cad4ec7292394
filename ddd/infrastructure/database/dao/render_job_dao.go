package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"manim-service/ddd/infrastructure/database/po"
)

type RenderJobDAO struct {
	db *gorm.DB
}

func NewRenderJobDAO(db *gorm.DB) *RenderJobDAO {
	return &RenderJobDAO{db: db}
}

// AutoMigrate creates the job tables.
func (d *RenderJobDAO) AutoMigrate() error {
	return d.db.AutoMigrate(&po.RenderJob{}, &po.RenderJobActive{})
}

// CreateWithActive inserts the job and points the client's active entry at it.
func (d *RenderJobDAO) CreateWithActive(ctx context.Context, job *po.RenderJob) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		active := &po.RenderJobActive{ClientID: job.ClientID, JobID: job.JobID, UpdatedAt: job.UpdatedAt}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"job_id", "updated_at"}),
		}).Create(active).Error
	})
}

// FindByJobID returns nil, nil when the job does not exist.
func (d *RenderJobDAO) FindByJobID(ctx context.Context, jobID string) (*po.RenderJob, error) {
	var job po.RenderJob
	err := d.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActive returns nil, nil when the client has no active job.
func (d *RenderJobDAO) FindActive(ctx context.Context, clientID string) (*po.RenderJobActive, error) {
	var active po.RenderJobActive
	err := d.db.WithContext(ctx).Where("client_id = ?", clientID).First(&active).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &active, nil
}

// MutateLocked loads the job row under SELECT ... FOR UPDATE, lets fn change
// it and writes the returned column set back. fn returning nil skips the write.
func (d *RenderJobDAO) MutateLocked(ctx context.Context, jobID string, fn func(job *po.RenderJob) map[string]interface{}) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job po.RenderJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("job_id = ?", jobID).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cols := fn(&job)
		if len(cols) == 0 {
			return nil
		}
		return tx.Model(&po.RenderJob{}).Where("job_id = ?", jobID).Updates(cols).Error
	})
}

// DeleteActiveIfMatch removes the client's active entry only while it holds jobID.
func (d *RenderJobDAO) DeleteActiveIfMatch(ctx context.Context, clientID, jobID string) error {
	return d.db.WithContext(ctx).
		Where("client_id = ? AND job_id = ?", clientID, jobID).
		Delete(&po.RenderJobActive{}).Error
}

package po

import "time"

// BaseModel 公共字段
type BaseModel struct {
	Id        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime(3)" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime(3)" json:"updated_at"`
}

// RenderJob 渲染任务持久化对象
type RenderJob struct {
	BaseModel
	JobID        string `gorm:"column:job_id;type:varchar(64);uniqueIndex" json:"job_id"`
	ClientID     string `gorm:"column:client_id;type:varchar(128);index" json:"client_id"`
	Prompt       string `gorm:"column:prompt;type:text" json:"prompt"`
	Status       string `gorm:"column:status;type:varchar(20);index" json:"status"`
	Step         string `gorm:"column:step;type:varchar(20)" json:"step"`
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message"`
	VideoPath    string `gorm:"column:video_path;type:varchar(512)" json:"video_path"`
	// Logs is a JSON array of the retained log lines.
	Logs string `gorm:"column:logs;type:mediumtext" json:"logs"`
}

// TableName 指定表名
func (RenderJob) TableName() string {
	return "render_jobs"
}

// RenderJobActive 每个客户端当前活跃任务
type RenderJobActive struct {
	ClientID  string    `gorm:"column:client_id;type:varchar(128);primaryKey" json:"client_id"`
	JobID     string    `gorm:"column:job_id;type:varchar(64)" json:"job_id"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime(3)" json:"updated_at"`
}

func (RenderJobActive) TableName() string {
	return "render_job_actives"
}

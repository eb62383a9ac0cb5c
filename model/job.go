package model

import "time"

// JobState is the lifecycle state of a video job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further updates follow.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is the cached, frequently updated view of a job.
type JobStatus struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Video is the persisted record of a finished render.
type Video struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"jobId"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Voice     string    `gorm:"type:varchar(32)" json:"voice"`
	Category  string    `gorm:"type:varchar(64);index" json:"category"`
	Duration  float64   `json:"duration"`
	FilePath  string    `gorm:"type:varchar(512)" json:"-"`
	ObjectKey string    `gorm:"type:varchar(512)" json:"objectKey,omitempty"`
	Status    JobState  `gorm:"type:varchar(16);index" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}

package chat

import "time"

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// GroupRun records one grouping pass that found work or failed. It is
// written after the batch transaction so failed passes survive rollback.
type GroupRun struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	Trigger string    `gorm:"type:varchar(32);not null" json:"trigger"`
	Status  RunStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	MessagesGrouped int `json:"messages_grouped"`
	Conversations   int `json:"conversations"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GroupRun) TableName() string { return "group_runs" }

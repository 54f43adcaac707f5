package chat

import (
	"time"

	"gorm.io/gorm"
)

type SenderType string

const (
	SenderLead      SenderType = "lead"
	SenderSecretary SenderType = "secretary"
)

// RawMessage is one message as delivered by the ingestion side (L1).
// Timestamp keeps the upstream string untouched; it is parsed at grouping time.
type RawMessage struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	N8NHost       string    `gorm:"column:n8n_host;type:varchar(255)" json:"n8n_host"`
	EvoInstance   string    `gorm:"type:varchar(255)" json:"evo_instance"`
	EvoHost       string    `gorm:"type:varchar(255)" json:"evo_host"`
	SenderPhone   *string   `gorm:"type:varchar(128);index" json:"sender_phone"`
	ReceiverPhone string    `gorm:"type:varchar(128);index" json:"receiver_phone"`
	MessageType   string    `gorm:"type:varchar(64)" json:"message_type"`
	Content       string    `gorm:"type:text" json:"content"`
	Timestamp     string    `gorm:"type:varchar(64);index" json:"timestamp"`
	IngestedAt    time.Time `gorm:"autoCreateTime" json:"ingested_at"`
	Processed     bool      `gorm:"index;not null;default:false" json:"processed"`
}

func (RawMessage) TableName() string { return "messages_l1" }

// Conversation aggregates one lead's messages for one calendar day (L2).
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"conversation_id"`
	LeadPhone      string    `gorm:"type:varchar(128);index;not null" json:"lead_phone"`
	SecretaryPhone string    `gorm:"type:varchar(128)" json:"secretary_phone"`
	MessageCount   int       `gorm:"not null;default:0" json:"message_count"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	CreatedAt      time.Time `json:"created_at"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID;references:ConversationID" json:"-"`
}

func (Conversation) TableName() string { return "conversations_l2" }

// ConversationMessage is an append-only history row of a conversation.
type ConversationMessage struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string     `gorm:"type:varchar(191);not null;index:idx_conv_msg_ts,priority:1" json:"conversation_id"`
	RawMessageID   uint64     `gorm:"index" json:"-"`
	SenderType     SenderType `gorm:"type:varchar(16);not null" json:"sender_type"`
	Content        string     `gorm:"type:text" json:"content"`
	Timestamp      time.Time  `gorm:"index:idx_conv_msg_ts,priority:2" json:"timestamp"`
}

func (ConversationMessage) TableName() string { return "conversation_messages" }

// HistoryEntry is the read shape of one message inside a conversation.
type HistoryEntry struct {
	SenderType SenderType `json:"sender_type"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ConversationSummary describes what one grouping pass did to a conversation.
// MessageCount and the time bounds cover this pass only.
type ConversationSummary struct {
	ConversationID string         `json:"conversation_id"`
	LeadPhone      string         `json:"lead_phone"`
	SecretaryPhone string         `json:"secretary_phone"`
	MessageCount   int            `json:"message_count"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Messages       []HistoryEntry `json:"messages"`
}

// ConversationSnapshot is a cached view of a conversation's raw messages.
type ConversationSnapshot struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []HistoryEntry `json:"messages"`
}

// AutoMigrate creates or updates every table this package owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&RawMessage{}, &Conversation{}, &ConversationMessage{}, &GroupRun{})
}

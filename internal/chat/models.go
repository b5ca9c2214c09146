package chat

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID  string     `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	Department string     `gorm:"type:varchar(32);not null" json:"department"`
	Status     string     `gorm:"type:varchar(16);index;not null" json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	CustomerName  *string `gorm:"type:varchar(128)" json:"customer_name,omitempty"`
	CustomerPhone *string `gorm:"type:varchar(32)" json:"customer_phone,omitempty"`
	CustomerEmail *string `gorm:"type:varchar(128)" json:"customer_email,omitempty"`

	Sentiment *string `gorm:"type:varchar(16)" json:"sentiment,omitempty"`
	Summary   *string `gorm:"type:text" json:"summary,omitempty"`

	PageURL           string `gorm:"type:varchar(512)" json:"page_url,omitempty"`
	SurveyID          string `gorm:"type:varchar(64)" json:"survey_id,omitempty"`
	SurveyTitle       string `gorm:"type:varchar(256)" json:"survey_title,omitempty"`
	SurveyDescription string `gorm:"type:text" json:"survey_description,omitempty"`

	MessageCount int `gorm:"not null;default:0" json:"message_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);not null;index" json:"session_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

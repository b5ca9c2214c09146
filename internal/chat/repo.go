package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repo is the durable transcript store: sessions and their append-only,
// creation-ordered message sequences.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendMessage writes one message and bumps the owning session's count.
func (r *Repo) AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	m := &Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Session{}).
			Where("session_id = ?", sessionID).
			UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the full transcript in creation order (oldest first).
func (r *Repo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) UpdateSessionContact(ctx context.Context, sessionID string, name, phone, email *string) error {
	updates := map[string]any{}
	if name != nil {
		updates["customer_name"] = *name
	}
	if phone != nil {
		updates["customer_phone"] = *phone
	}
	if email != nil {
		updates["customer_email"] = *email
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}

// CompleteSession records the classification result and closes the session.
func (r *Repo) CompleteSession(ctx context.Context, sessionID, sentiment, summary string, endedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":    StatusCompleted,
			"sentiment": sentiment,
			"summary":   summary,
			"ended_at":  endedAt,
		}).Error
}

// Job CRUD

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

package repository

import (
	"context"
	"errors"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/models"
	apperrors "multiai-telebot/backend/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendParams carries everything needed to append one message. Both
// ids originate from the messaging platform.
type AppendParams struct {
	ConversationID   int64
	MessageID        int64
	AuthorName       *string
	Role             ai.Role
	Content          ai.MessageContent
	DefaultDirective *string
}

// ExchangeFunc produces the assistant reply for a just-appended user
// prompt. It runs inside the store transaction so that a failure rolls
// back the prompt as well; history is the capped context already
// containing the prompt, in ascending id order.
type ExchangeFunc func(ctx context.Context, conv *models.Conversation, history []models.Message) (*AppendParams, error)

// ConversationRepository is the persistence contract of the retention
// engine. Eviction and purge never fail on zero matches.
type ConversationRepository interface {
	Find(ctx context.Context, id int64) (*models.Conversation, error)
	FindOrCreate(ctx context.Context, id int64, defaultDirective *string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, params AppendParams, maxMessages int) (*models.Message, error)
	AppendExchange(ctx context.Context, prompt AppendParams, maxMessages int, fn ExchangeFunc) (*models.Message, error)
	Erase(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	GetDirective(ctx context.Context, id int64) (*string, error)
	SetDirective(ctx context.Context, id int64, directive string) error
	ResetDirective(ctx context.Context, id int64, defaultDirective *string) error
	CountMessages(ctx context.Context, id int64) (int64, error)
	Messages(ctx context.Context, id int64) ([]models.Message, error)
	RecentMessages(ctx context.Context, id int64, limit int) ([]models.Message, error)
	OldestMessage(ctx context.Context, id int64) (*models.Message, error)
	PurgeStale(ctx context.Context, horizon time.Duration) (int64, error)
}

// GormConversationRepository implements ConversationRepository on a
// relational store through GORM.
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) Find(ctx context.Context, id int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *GormConversationRepository) FindOrCreate(ctx context.Context, id int64, defaultDirective *string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		conv, txErr = findOrCreateTx(tx, id, defaultDirective)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// findOrCreateTx locks the conversation row for the rest of the
// transaction so concurrent appends to the same conversation serialize
// their count-then-evict sequence. SQLite has no FOR UPDATE and
// serializes writers at the database level instead.
func findOrCreateTx(tx *gorm.DB, id int64, defaultDirective *string) (*models.Conversation, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var conv models.Conversation
	err := q.First(&conv, "id = ?", id).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{ID: id, Directive: defaultDirective}
	if err := tx.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// appendTx inserts one message and enforces the capacity cap by
// evicting the single oldest message when the cap is exceeded. At most
// one message is evicted per append; a cap lowered through
// configuration drains one message at a time.
func appendTx(tx *gorm.DB, params AppendParams, maxMessages int) (*models.Message, error) {
	conv, err := findOrCreateTx(tx, params.ConversationID, params.DefaultDirective)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv.Touch(now)
	if err := tx.Model(conv).Update("last_message_at", now).Error; err != nil {
		return nil, err
	}

	msg := models.Message{
		ConversationID: params.ConversationID,
		ID:             params.MessageID,
		AuthorName:     params.AuthorName,
		Role:           params.Role,
		Content:        params.Content,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, err
	}

	var count int64
	if err := tx.Model(&models.Message{}).Where("conversation_id = ?", params.ConversationID).Count(&count).Error; err != nil {
		return nil, err
	}

	if maxMessages > 0 && count > int64(maxMessages) {
		var oldest models.Message
		if err := tx.Where("conversation_id = ?", params.ConversationID).Order("id ASC").First(&oldest).Error; err != nil {
			return nil, err
		}
		if err := tx.Delete(&models.Message{}, "conversation_id = ? AND id = ?", oldest.ConversationID, oldest.ID).Error; err != nil {
			return nil, err
		}

		// The eviction above must shrink the conversation. Anything
		// else means the step is broken and the append must not land.
		var after int64
		if err := tx.Model(&models.Message{}).Where("conversation_id = ?", params.ConversationID).Count(&after).Error; err != nil {
			return nil, err
		}
		if after >= count {
			return nil, apperrors.NewCapacityInvariantViolation(params.ConversationID, after, int64(maxMessages))
		}
	}

	return &msg, nil
}

func (r *GormConversationRepository) AppendMessage(ctx context.Context, params AppendParams, maxMessages int) (*models.Message, error) {
	var msg *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		msg, txErr = appendTx(tx, params, maxMessages)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendExchange persists a user prompt, runs fn to obtain the
// assistant reply, and persists the reply, all as one transaction. The
// commit of the prompt is deliberately delayed until the reply is also
// ready: a failed LLM call rolls back both, so no orphaned user-only
// turn pollutes the context for the next attempt.
func (r *GormConversationRepository) AppendExchange(ctx context.Context, prompt AppendParams, maxMessages int, fn ExchangeFunc) (*models.Message, error) {
	var reply *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := appendTx(tx, prompt, maxMessages); err != nil {
			return err
		}

		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", prompt.ConversationID).Error; err != nil {
			return err
		}
		var history []models.Message
		if err := tx.Where("conversation_id = ?", prompt.ConversationID).Order("id ASC").Find(&history).Error; err != nil {
			return err
		}

		replyParams, err := fn(ctx, &conv, history)
		if err != nil {
			return err
		}
		replyParams.ConversationID = prompt.ConversationID

		var txErr error
		reply, txErr = appendTx(tx, *replyParams, maxMessages)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Erase deletes every message in the conversation but keeps the shell;
// id, directive and last activity survive.
func (r *GormConversationRepository) Erase(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, "conversation_id = ?", id).Error
}

// Delete removes the conversation; the ON DELETE CASCADE foreign key
// takes its messages with it. SQLite needs foreign keys switched on for
// this, which the connection setup does.
func (r *GormConversationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Conversation{}, "id = ?", id).Error
}

func (r *GormConversationRepository) GetDirective(ctx context.Context, id int64) (*string, error) {
	conv, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperrors.NewConversationNotFound(id)
	}
	return conv.Directive, nil
}

// SetDirective creates the conversation when absent, matching the
// behavior of setting a system message in a fresh chat.
func (r *GormConversationRepository) SetDirective(ctx context.Context, id int64, directive string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := findOrCreateTx(tx, id, nil)
		if err != nil {
			return err
		}
		return tx.Model(conv).Update("directive", directive).Error
	})
}

// ResetDirective restores the default directive. A never-created
// conversation is left untouched; reset is not a creation event.
func (r *GormConversationRepository) ResetDirective(ctx context.Context, id int64, defaultDirective *string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("directive", defaultDirective).Error
}

func (r *GormConversationRepository) CountMessages(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", id).Count(&count).Error
	return count, err
}

// Messages returns the conversation's messages in ascending id order.
func (r *GormConversationRepository) Messages(ctx context.Context, id int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).Where("conversation_id = ?", id).Order("id ASC").Find(&msgs).Error
	return msgs, err
}

// RecentMessages returns up to limit messages in descending id order,
// the ordered range fetch the context builder caps on.
func (r *GormConversationRepository) RecentMessages(ctx context.Context, id int64, limit int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", id).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	err := q.Find(&msgs).Error
	return msgs, err
}

func (r *GormConversationRepository) OldestMessage(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Where("conversation_id = ?", id).Order("id ASC").First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PurgeStale deletes every conversation whose last activity is strictly
// older than the horizon, cascading to messages. Conversations that
// never recorded activity are excluded; a NULL last_message_at is not
// "older than the horizon".
func (r *GormConversationRepository) PurgeStale(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-horizon)

	// SQL three-valued logic keeps NULL last_message_at rows out of
	// the comparison, so never-active conversations survive.
	res := r.db.WithContext(ctx).Where("last_message_at < ?", cutoff).Delete(&models.Conversation{})
	return res.RowsAffected, res.Error
}

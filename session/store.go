package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/newsie/models"
	"github.com/mohammad-safakhou/newsie/repository"
)

// TTL is the session lifetime. Every persisted write refreshes it, so a
// session expires 24 hours after its last write, not after creation.
const TTL = 24 * time.Hour

const (
	// DefaultChatID is the reserved chat id used by the single-session
	// endpoints. It is the only chat that is lazily created on append.
	DefaultChatID = "default"

	defaultChatTitle = "Default Chat"
	newChatTitle     = "New Chat"
)

// Store persists per-session chat collections in a key-value backend.
// Records are read, modified in memory and written back whole; two
// concurrent turns against the same chat can race and one append can be
// lost. Known limitation; nothing serializes turns per session.
type Store struct {
	kv repository.KV

	now   func() time.Time
	newID func() string
}

func NewStore(kv repository.KV) *Store {
	return &Store{
		kv:    kv,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Initialize creates an empty session if none exists. It reports whether a
// new session was created; calling it twice is safe and the second call
// reports false.
func (s *Store) Initialize(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, sessionID)
	if err != nil {
		return false, storageErr(err)
	}
	if ok {
		return false, nil
	}
	if err := s.persist(ctx, sessionID, models.Session{Chats: []models.Chat{}}); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the session for the given id. An absent or expired record
// yields an empty session, never an error. A record still in the legacy
// layout (a bare message array) is migrated into a single "Default Chat"
// and re-persisted in the current layout before being returned.
func (s *Store) Load(ctx context.Context, sessionID string) (models.Session, error) {
	raw, ok, err := s.kv.Get(ctx, sessionID)
	if err != nil {
		return models.Session{}, storageErr(err)
	}
	if !ok {
		return models.Session{Chats: []models.Chat{}}, nil
	}

	if isLegacy(raw) {
		return s.migrateLegacy(ctx, sessionID, raw)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return models.Session{}, fmt.Errorf("session record decode: %w", err)
	}
	if sess.Chats == nil {
		sess.Chats = []models.Chat{}
	}
	return sess, nil
}

// ListChats returns chat metadata without message bodies.
func (s *Store) ListChats(ctx context.Context, sessionID string) ([]models.ChatSummary, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ChatSummary, len(sess.Chats))
	for i, c := range sess.Chats {
		summaries[i] = models.ChatSummary{
			ChatID:    c.ChatID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}
	return summaries, nil
}

// CreateChat appends a new empty chat to the session and persists it.
func (s *Store) CreateChat(ctx context.Context, sessionID, title string) (models.Chat, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return models.Chat{}, err
	}
	if strings.TrimSpace(title) == "" {
		title = newChatTitle
	}
	now := s.now()
	chat := models.Chat{
		ChatID:    s.newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
	}
	sess.Chats = append(sess.Chats, chat)
	if err := s.persist(ctx, sessionID, sess); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat returns one chat with its messages.
func (s *Store) GetChat(ctx context.Context, sessionID, chatID string) (models.Chat, error) {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return models.Chat{}, err
	}
	for _, c := range sess.Chats {
		if c.ChatID == chatID {
			return c, nil
		}
	}
	return models.Chat{}, models.ErrChatNotFound
}

// AppendTurn appends one user/bot message pair to a chat and refreshes the
// chat's UpdatedAt and the session TTL. An unknown chat id is a not-found
// error, except for the reserved default chat which is created on first use.
func (s *Store) AppendTurn(ctx context.Context, sessionID, chatID, userText, botText string) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range sess.Chats {
		if sess.Chats[i].ChatID == chatID {
			idx = i
			break
		}
	}
	if idx == -1 {
		if chatID != DefaultChatID {
			return models.ErrChatNotFound
		}
		now := s.now()
		sess.Chats = append(sess.Chats, models.Chat{
			ChatID:    DefaultChatID,
			Title:     defaultChatTitle,
			CreatedAt: now,
			UpdatedAt: now,
			Messages:  []models.Message{},
		})
		idx = len(sess.Chats) - 1
	}

	chat := &sess.Chats[idx]
	chat.Messages = append(chat.Messages,
		models.Message{Role: models.RoleUser, Message: userText},
		models.Message{Role: models.RoleBot, Message: botText},
	)
	chat.UpdatedAt = s.now()

	return s.persist(ctx, sessionID, sess)
}

// DeleteChat removes a chat. Deleting an unknown chat id reports not-found
// and leaves the session untouched.
func (s *Store) DeleteChat(ctx context.Context, sessionID, chatID string) error {
	sess, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range sess.Chats {
		if sess.Chats[i].ChatID == chatID {
			sess.Chats = append(sess.Chats[:i], sess.Chats[i+1:]...)
			return s.persist(ctx, sessionID, sess)
		}
	}
	return models.ErrChatNotFound
}

// Clear removes the whole session record.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.kv.Del(ctx, sessionID); err != nil {
		return storageErr(err)
	}
	return nil
}

// isLegacy detects the pre-chat record layout: a bare JSON array of
// messages stored directly under the session id.
func isLegacy(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return strings.HasPrefix(trimmed, "[")
}

func (s *Store) migrateLegacy(ctx context.Context, sessionID, raw string) (models.Session, error) {
	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return models.Session{}, fmt.Errorf("legacy session decode: %w", err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	now := s.now()
	sess := models.Session{Chats: []models.Chat{{
		ChatID:    DefaultChatID,
		Title:     defaultChatTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  messages,
	}}}
	// Persisting under the same key replaces the legacy record, so the two
	// layouts are never live at once.
	if err := s.persist(ctx, sessionID, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (s *Store) persist(ctx context.Context, sessionID string, sess models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session record encode: %w", err)
	}
	if err := s.kv.Set(ctx, sessionID, string(data), TTL); err != nil {
		return storageErr(err)
	}
	return nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
}

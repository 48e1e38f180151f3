package models

import (
	"errors"
	"time"
)

// ErrChatNotFound is returned when a chat id does not exist within a session
var ErrChatNotFound = errors.New("chat not found")

// ErrStorageUnavailable wraps transport failures of the session key-value store
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Message roles as stored in the session log
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Article is a normalized news item produced by the ingestion pipeline.
type Article struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}

// Chunk is the unit stored in the vector index: a bounded slice of an
// article's content plus the article metadata. ID is "<documentKey>-<index>"
// where documentKey is the canonical article URL, or the title when the
// article has no URL.
type Chunk struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ChunkIndex  int       `json:"chunk_index"`
	Text        string    `json:"text"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Message is one entry of a chat log. Messages are appended in user/bot
// pairs, one pair per answered turn.
type Message struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Chat is a named conversation thread within a session.
type Chat struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ChatSummary is the message-free view of a chat used by listings.
type ChatSummary struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the persisted record for one session id. A session with zero
// chats is valid; an expired session is indistinguishable from one that
// never existed.
type Session struct {
	Chats []Chat `json:"chats"`
}

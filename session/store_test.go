package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/newsie/models"
)

// fakeKV is an in-memory key-value backend recording TTLs and optionally
// failing every call.
type fakeKV struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Ping(ctx context.Context) error { return f.err }

func newTestStore(kv *fakeKV) *Store {
	s := NewStore(kv)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	i := 0
	s.newID = func() string {
		i++
		return fmt.Sprintf("chat-%d", i)
	}
	return s
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	created, err := s.Initialize(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !created {
		t.Fatalf("first Initialize() reported already existed")
	}

	created, err = s.Initialize(ctx, "sess-1")
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if created {
		t.Fatalf("second Initialize() reported created")
	}

	sess, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sess.Chats) != 0 {
		t.Fatalf("initialized session should be empty, got %d chats", len(sess.Chats))
	}
}

func TestLoadAbsentSessionIsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(newFakeKV())
	sess, err := s.Load(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.Chats == nil || len(sess.Chats) != 0 {
		t.Fatalf("absent session should load as empty, got %+v", sess)
	}
}

func TestLegacyMigration(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	legacy := `[{"role":"user","message":"hi"},{"role":"bot","message":"hello"}]`
	kv.data["sess-legacy"] = legacy

	sess, err := s.Load(ctx, "sess-legacy")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sess.Chats) != 1 {
		t.Fatalf("expected 1 migrated chat, got %d", len(sess.Chats))
	}
	chat := sess.Chats[0]
	if chat.Title != "Default Chat" || chat.ChatID != DefaultChatID {
		t.Fatalf("migrated chat = %q/%q", chat.ChatID, chat.Title)
	}
	if len(chat.Messages) != 2 || chat.Messages[0].Message != "hi" || chat.Messages[1].Message != "hello" {
		t.Fatalf("migrated messages out of order: %+v", chat.Messages)
	}
	if !chat.CreatedAt.Equal(chat.UpdatedAt) {
		t.Fatalf("migration should set both timestamps to migration time")
	}

	// The stored record must now be in the current layout.
	if isLegacy(kv.data["sess-legacy"]) {
		t.Fatalf("legacy record still present after migration")
	}
	reloaded, err := s.Load(ctx, "sess-legacy")
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if len(reloaded.Chats) != 1 || len(reloaded.Chats[0].Messages) != 2 {
		t.Fatalf("round-trip after migration lost data: %+v", reloaded)
	}
}

func TestCreateChatDefaults(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "sess-1", "")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if chat.Title != "New Chat" {
		t.Fatalf("default title = %q", chat.Title)
	}
	if chat.ChatID == "" {
		t.Fatalf("chat id not generated")
	}

	named, err := s.CreateChat(ctx, "sess-1", "Elections")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	if named.Title != "Elections" {
		t.Fatalf("title = %q", named.Title)
	}
	if named.ChatID == chat.ChatID {
		t.Fatalf("chat ids must be unique within a session")
	}

	chats, err := s.ListChats(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if len(chats) != 2 || chats[0].ChatID != chat.ChatID || chats[1].ChatID != named.ChatID {
		t.Fatalf("chats not in creation order: %+v", chats)
	}
}

func TestAppendTurnPairsAndTimestamps(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "sess-1", "World")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	if err := s.AppendTurn(ctx, "sess-1", chat.ChatID, "q1", "a1"); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	got, err := s.GetChat(ctx, "sess-1", chat.ChatID)
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages after one turn, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != models.RoleUser || got.Messages[1].Role != models.RoleBot {
		t.Fatalf("messages not in [user, bot] order: %+v", got.Messages)
	}

	first := got.UpdatedAt
	if err := s.AppendTurn(ctx, "sess-1", chat.ChatID, "q2", "a2"); err != nil {
		t.Fatalf("second AppendTurn() error = %v", err)
	}
	got2, _ := s.GetChat(ctx, "sess-1", chat.ChatID)
	if len(got2.Messages) != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", len(got2.Messages))
	}
	if got2.UpdatedAt.Before(first) {
		t.Fatalf("UpdatedAt went backwards: %v -> %v", first, got2.UpdatedAt)
	}
	if !got2.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("CreatedAt changed on append")
	}
}

func TestAppendTurnUnknownChat(t *testing.T) {
	t.Parallel()
	s := newTestStore(newFakeKV())
	err := s.AppendTurn(context.Background(), "sess-1", "nope", "q", "a")
	if !errors.Is(err, models.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestAppendTurnAutoCreatesDefaultChat(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	if err := s.AppendTurn(ctx, "sess-1", DefaultChatID, "q", "a"); err != nil {
		t.Fatalf("AppendTurn() on default chat error = %v", err)
	}
	chat, err := s.GetChat(ctx, "sess-1", DefaultChatID)
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if chat.Title != "Default Chat" || len(chat.Messages) != 2 {
		t.Fatalf("default chat not created correctly: %+v", chat)
	}
}

func TestDeleteChat(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	chat, _ := s.CreateChat(ctx, "sess-1", "World")
	other, _ := s.CreateChat(ctx, "sess-1", "Tech")

	if err := s.DeleteChat(ctx, "sess-1", chat.ChatID); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}
	chats, _ := s.ListChats(ctx, "sess-1")
	if len(chats) != 1 || chats[0].ChatID != other.ChatID {
		t.Fatalf("unexpected chats after delete: %+v", chats)
	}

	err := s.DeleteChat(ctx, "sess-1", chat.ChatID)
	if !errors.Is(err, models.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	chats, _ = s.ListChats(ctx, "sess-1")
	if len(chats) != 1 {
		t.Fatalf("failed delete must not mutate the session")
	}
}

func TestClearRemovesSession(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	_, _ = s.CreateChat(ctx, "sess-1", "World")
	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	sess, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load() after Clear error = %v", err)
	}
	if len(sess.Chats) != 0 {
		t.Fatalf("session not empty after Clear")
	}
}

func TestEveryWriteRefreshesTTL(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	_, _ = s.Initialize(ctx, "sess-1")
	if kv.ttls["sess-1"] != TTL {
		t.Fatalf("Initialize ttl = %v", kv.ttls["sess-1"])
	}
	kv.ttls["sess-1"] = 0
	_ = s.AppendTurn(ctx, "sess-1", DefaultChatID, "q", "a")
	if kv.ttls["sess-1"] != TTL {
		t.Fatalf("AppendTurn did not refresh ttl")
	}
}

func TestStorageFailuresAreTyped(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	kv.err = errors.New("connection refused")
	s := newTestStore(kv)
	ctx := context.Background()

	if _, err := s.Load(ctx, "sess-1"); !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("Load() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := s.Initialize(ctx, "sess-1"); !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("Initialize() error = %v, want ErrStorageUnavailable", err)
	}
	if err := s.Clear(ctx, "sess-1"); !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("Clear() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestPersistedLayout(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	s := newTestStore(kv)
	ctx := context.Background()

	_ = s.AppendTurn(ctx, "sess-1", DefaultChatID, "question", "answer")

	var record map[string]json.RawMessage
	if err := json.Unmarshal([]byte(kv.data["sess-1"]), &record); err != nil {
		t.Fatalf("stored record is not a JSON object: %v", err)
	}
	if _, ok := record["chats"]; !ok {
		t.Fatalf("stored record missing chats wrapper: %s", kv.data["sess-1"])
	}
}

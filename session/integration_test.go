package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/newsie/models"
	"github.com/mohammad-safakhou/newsie/repository/redis_repository"
	"github.com/mohammad-safakhou/newsie/session"
)

func TestStoreAgainstRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client, err := redis_repository.Conn(ctx, host, port.Port(), "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("redis connect: %v", err)
	}
	defer client.Close()

	store := session.NewStore(redis_repository.NewKV(client))
	const sessionID = "integration-session"

	created, err := store.Initialize(ctx, sessionID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !created {
		t.Fatal("first initialize must create the session")
	}

	chat, err := store.CreateChat(ctx, sessionID, "Markets")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if err := store.AppendTurn(ctx, sessionID, chat.ChatID, "what moved today?", "Stocks were flat."); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	got, err := store.GetChat(ctx, sessionID, chat.ChatID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Role != models.RoleBot {
		t.Fatalf("round-tripped chat wrong: %+v", got.Messages)
	}

	// every write refreshes the session lifetime
	ttl, err := client.TTL(ctx, sessionID).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 23*time.Hour || ttl > session.TTL {
		t.Fatalf("expected ttl close to %v, got %v", session.TTL, ttl)
	}

	if err := store.Clear(ctx, sessionID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sess, err := store.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if len(sess.Chats) != 0 {
		t.Fatalf("cleared session should be empty, got %+v", sess.Chats)
	}
}

package ingest

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

// lockTTL must outlive one ingestion batch so a second replica cannot start
// the same batch while the first is still running.
const lockTTL = 10 * time.Minute

const lockKey = "ingest:lock"

// Scheduler runs the ingestion pipeline on a cron schedule. When a redis
// client is present it takes a SetNX lock before each batch so only one
// replica ingests.
type Scheduler struct {
	Pipeline *Pipeline
	CronSpec string
	Rdb      *redis.Client
	Stop     chan struct{}
	Logger   *log.Logger

	lastRun *time.Time
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if !isDue(s.CronSpec, s.lastRun) {
		return
	}

	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, lockKey)
	}

	now := time.Now()
	s.lastRun = &now

	n, err := s.Pipeline.Run(ctx)
	if err != nil {
		s.Logger.Printf("scheduled ingestion failed: %v", err)
		return
	}
	s.Logger.Printf("scheduled ingestion wrote %d chunks", n)
}

// isDue reports whether a run is owed given the schedule and last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions; an
// unparsable spec falls back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}

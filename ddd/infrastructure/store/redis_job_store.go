package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/repo"
	"manim-service/ddd/domain/vo"
	"manim-service/pkg/logger"
	"manim-service/pkg/redisclient"
)

const (
	fieldID        = "id"
	fieldClientID  = "client_id"
	fieldPrompt    = "prompt"
	fieldStep      = "step"
	fieldError     = "error"
	fieldVideoPath = "video_path"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"

	maxUpdateRetries = 5
)

// appendLogScript pushes a line only when the job hash exists.
var appendLogScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
redis.call("LTRIM", KEYS[2], -tonumber(ARGV[2]), -1)
redis.call("HSET", KEYS[1], "updated_at", ARGV[3])
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`)

// retireScript deletes the active entry only if it still holds the job id.
var retireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisJobStore shares jobs and the active index between service instances.
type RedisJobStore struct {
	rdb    redis.UniversalClient
	keys   redisclient.Keyspace
	logCap int
	ttl    time.Duration
	now    func() time.Time
}

var _ repo.JobStore = (*RedisJobStore)(nil)

// NewRedisJobStore builds a store; ttl <= 0 keeps jobs forever.
func NewRedisJobStore(rdb redis.UniversalClient, prefix string, logCap int, ttl time.Duration) *RedisJobStore {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	return &RedisJobStore{
		rdb:    rdb,
		keys:   redisclient.NewKeyspace(prefix, "manim"),
		logCap: logCap,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisJobStore) jobKey(id string) string          { return s.keys.Key("job", id) }
func (s *RedisJobStore) logsKey(id string) string         { return s.keys.Key("job", id, "logs") }
func (s *RedisJobStore) activeKey(clientID string) string { return s.keys.Key("active", clientID) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *RedisJobStore) CreateJob(ctx context.Context, job *entity.RenderJob) error {
	if job == nil {
		return entity.NewDomainError("nil job")
	}
	key := s.jobKey(job.ID())
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if n > 0 {
		return entity.NewDomainError("job already exists: " + job.ID())
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldID:        job.ID(),
			fieldClientID:  job.ClientID(),
			fieldPrompt:    job.Prompt(),
			fieldStep:      string(job.Step()),
			fieldError:     job.Error(),
			fieldVideoPath: job.VideoPath(),
			fieldCreatedAt: formatTime(job.CreatedAt()),
			fieldUpdatedAt: formatTime(job.UpdatedAt()),
		})
		pipe.Del(ctx, s.logsKey(job.ID()))
		if logs := job.Logs(); len(logs) > 0 {
			vals := make([]interface{}, len(logs))
			for i, l := range logs {
				vals[i] = l
			}
			pipe.RPush(ctx, s.logsKey(job.ID()), vals...)
		}
		pipe.Set(ctx, s.activeKey(job.ClientID()), job.ID(), s.ttl)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
			pipe.Expire(ctx, s.logsKey(job.ID()), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis create job: %w", err)
	}
	return nil
}

// jobReader is satisfied by both the client and a WATCH transaction.
type jobReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func (s *RedisJobStore) load(ctx context.Context, c jobReader, id string, withLogs bool) (*entity.RenderJob, bool, error) {
	fields, err := c.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	phase, err := vo.PhaseFromStep(vo.JobStep(fields[fieldStep]))
	if err != nil {
		return nil, false, err
	}
	var logs []string
	if withLogs {
		logs, err = c.LRange(ctx, s.logsKey(id), 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, false, err
		}
	}
	return entity.RestoreRenderJob(
		fields[fieldID],
		fields[fieldClientID],
		fields[fieldPrompt],
		phase,
		fields[fieldError],
		fields[fieldVideoPath],
		logs,
		parseTime(fields[fieldCreatedAt]),
		parseTime(fields[fieldUpdatedAt]),
	), true, nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, id string) (*entity.RenderJob, bool) {
	job, ok, err := s.load(ctx, s.rdb, id, true)
	if err != nil {
		logger.Warnf("redis get job failed job_id=%s error=%v", id, err)
		return nil, false
	}
	return job, ok
}

func (s *RedisJobStore) GetActiveJobID(ctx context.Context, clientID string) (string, bool) {
	id, err := s.rdb.Get(ctx, s.activeKey(clientID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("redis get active job failed client_id=%s error=%v", clientID, err)
		}
		return "", false
	}
	return id, id != ""
}

func (s *RedisJobStore) UpdateJob(ctx context.Context, id string, u entity.JobUpdate) {
	key := s.jobKey(id)
	txf := func(tx *redis.Tx) error {
		job, ok, err := s.load(ctx, tx, id, false)
		if err != nil || !ok {
			return err
		}
		if err := job.Apply(u, s.now()); err != nil {
			logger.Warnf("job update ignored job_id=%s error=%v", id, err)
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				fieldStep:      string(job.Step()),
				fieldError:     job.Error(),
				fieldVideoPath: job.VideoPath(),
				fieldUpdatedAt: formatTime(job.UpdatedAt()),
			})
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		logger.Warnf("redis update job failed job_id=%s error=%v", id, err)
		return
	}
	logger.Warnf("redis update job gave up after %d retries job_id=%s", maxUpdateRetries, id)
}

func (s *RedisJobStore) AppendLog(ctx context.Context, id, line string) {
	keys := []string{s.jobKey(id), s.logsKey(id)}
	err := appendLogScript.Run(ctx, s.rdb, keys, line, strconv.Itoa(s.logCap), formatTime(s.now())).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Warnf("redis append log failed job_id=%s error=%v", id, err)
	}
}

func (s *RedisJobStore) RetireJob(ctx context.Context, id string) {
	clientID, err := s.rdb.HGet(ctx, s.jobKey(id), fieldClientID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("redis retire job failed job_id=%s error=%v", id, err)
		}
		return
	}
	if err := retireScript.Run(ctx, s.rdb, []string{s.activeKey(clientID)}, id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logger.Warnf("redis retire job failed job_id=%s error=%v", id, err)
	}
}

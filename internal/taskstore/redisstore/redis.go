// Package redisstore implements taskstore.Store on top of
// github.com/redis/go-redis/v9, grounding the storageType:"redis"
// backend option (marked "future" in the scheduler's options table)
// that the retrieval pack's minisource-scheduler manifest shows
// paired with robfig/cron in the same domain. Records are stored as
// Redis hashes, with key-sets tracking the handler/exec universes.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

const (
	handlerSetKey = "taskstore:handlers"
	execSetKey    = "taskstore:execs"
)

// Store is a durable taskstore.Store backed by Redis.
type Store struct {
	rdb *redis.Client
}

// New connects to a Redis server reachable at addr (host:port).
func New(addr, password string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func handlerKey(key string) string { return "taskstore:handler:" + key }
func execKey(key string) string    { return "taskstore:exec:" + key }

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) PutHandler(ctx context.Context, h taskstore.TaskHandler) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, handlerKey(h.Key), map[string]any{
		"bean_name":       h.BeanName,
		"bean_class_name": h.BeanClassName,
		"method_name":     h.MethodName,
	})
	pipe.SAdd(ctx, handlerSetKey, h.Key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetHandler(ctx context.Context, key string) (taskstore.TaskHandler, error) {
	m, err := s.rdb.HGetAll(ctx, handlerKey(key)).Result()
	if err != nil {
		return taskstore.TaskHandler{}, err
	}
	if len(m) == 0 {
		return taskstore.TaskHandler{}, taskstore.ErrNotFound
	}
	return taskstore.TaskHandler{
		Key:           key,
		BeanName:      m["bean_name"],
		BeanClassName: m["bean_class_name"],
		MethodName:    m["method_name"],
	}, nil
}

func (s *Store) ListHandlers(ctx context.Context) ([]taskstore.TaskHandler, error) {
	keys, err := s.rdb.SMembers(ctx, handlerSetKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]taskstore.TaskHandler, 0, len(keys))
	for _, k := range keys {
		h, err := s.GetHandler(ctx, k)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) PutExec(ctx context.Context, e taskstore.ExecDetail) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, execKey(e.Key), execFields(e))
	pipe.SAdd(ctx, execSetKey, e.Key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetExec(ctx context.Context, key string) (taskstore.ExecDetail, error) {
	m, err := s.rdb.HGetAll(ctx, execKey(key)).Result()
	if err != nil {
		return taskstore.ExecDetail{}, err
	}
	if len(m) == 0 {
		return taskstore.ExecDetail{}, taskstore.ErrNotFound
	}
	return parseExecFields(key, m), nil
}

func (s *Store) ListExecs(ctx context.Context) ([]taskstore.ExecDetail, error) {
	keys, err := s.rdb.SMembers(ctx, execSetKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]taskstore.ExecDetail, 0, len(keys))
	for _, k := range keys {
		e, err := s.GetExec(ctx, k)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) UpdateExec(ctx context.Context, e taskstore.ExecDetail) error {
	n, err := s.rdb.Exists(ctx, execKey(e.Key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskstore.ErrNotFound
	}
	return s.rdb.HSet(ctx, execKey(e.Key), execFields(e)).Err()
}

func (s *Store) DeleteExec(ctx context.Context, key string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, execKey(key))
	pipe.SRem(ctx, execSetKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) UpdateState(ctx context.Context, key string, state taskstore.State) error {
	n, err := s.rdb.Exists(ctx, execKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskstore.ErrNotFound
	}
	return s.rdb.HSet(ctx, execKey(key), map[string]any{"state": int(state)}).Err()
}

func (s *Store) UpdateStateToError(ctx context.Context, key string, errMsg string) error {
	n, err := s.rdb.Exists(ctx, execKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskstore.ErrNotFound
	}
	return s.rdb.HSet(ctx, execKey(key), map[string]any{
		"state":     int(taskstore.StateError),
		"error_msg": errMsg,
	}).Err()
}

// incrExecCountScript performs the read-increment-write as a single
// Redis command so concurrent writers cannot interleave, the same
// atomicity guarantee the sqlite/postgres backends get from a
// transaction.
var incrExecCountScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return redis.error_reply("not found")
end
local count = redis.call("HINCRBY", key, "exec_count", 1)
redis.call("HSET", key, "last_exec_time", ARGV[1])
return count
`)

func (s *Store) IncrementExecCount(ctx context.Context, key string, lastExecTime time.Time) (taskstore.ExecDetail, error) {
	_, err := incrExecCountScript.Run(ctx, s.rdb, []string{execKey(key)}, lastExecTime.Format(time.RFC3339Nano)).Result()
	if err != nil {
		if err.Error() == "not found" {
			return taskstore.ExecDetail{}, taskstore.ErrNotFound
		}
		return taskstore.ExecDetail{}, err
	}
	return s.GetExec(ctx, key)
}

func (s *Store) Recover(ctx context.Context) ([]taskstore.ExecDetail, error) {
	all, err := s.ListExecs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]taskstore.ExecDetail, 0, len(all))
	for _, e := range all {
		if e.State.NonTerminal() {
			out = append(out, e)
		}
	}
	return out, nil
}

func execFields(e taskstore.ExecDetail) map[string]any {
	return map[string]any{
		"desc":             e.Desc,
		"cron_expr":        e.CronExpr,
		"task_handler_key": e.TaskHandlerKey,
		"init_time":        e.InitTime.Format(time.RFC3339Nano),
		"end_time":         formatOptTime(e.EndTime),
		"last_exec_time":   formatOptTime(e.LastExecTime),
		"exec_count":       e.ExecCount,
		"max_exec_count":   e.MaxExecCount,
		"state":            int(e.State),
		"error_msg":        e.ErrorMsg,
	}
}

func parseExecFields(key string, m map[string]string) taskstore.ExecDetail {
	state, _ := strconv.Atoi(m["state"])
	count, _ := strconv.ParseInt(m["exec_count"], 10, 64)
	maxCount, _ := strconv.ParseInt(m["max_exec_count"], 10, 64)
	return taskstore.ExecDetail{
		Key:            key,
		Desc:           m["desc"],
		CronExpr:       m["cron_expr"],
		TaskHandlerKey: m["task_handler_key"],
		InitTime:       parseOptTime(m["init_time"]),
		EndTime:        parseOptTime(m["end_time"]),
		LastExecTime:   parseOptTime(m["last_exec_time"]),
		ExecCount:      count,
		MaxExecCount:   maxCount,
		State:          taskstore.State(state),
		ErrorMsg:       m["error_msg"],
	}
}

func formatOptTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseOptTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package postgres implements taskstore.Store on top of
// jackc/pgx's database/sql driver, grounded on the teacher's
// internal/store/postgres/postgres.go (sql.Open("pgx", dsn),
// ON CONFLICT upsert idiom).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/comradexy/mw-stm-go/internal/taskstore"
)

// Store is a durable taskstore.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a connection pool to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_handler(
			key TEXT PRIMARY KEY,
			bean_name TEXT NOT NULL,
			bean_class_name TEXT NOT NULL,
			method_name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exec_detail(
			key TEXT PRIMARY KEY,
			"desc" TEXT NOT NULL,
			cron_expr TEXT NOT NULL,
			task_handler_key TEXT NOT NULL REFERENCES task_handler(key),
			init_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			last_exec_time TIMESTAMPTZ,
			exec_count BIGINT NOT NULL DEFAULT 0,
			max_exec_count BIGINT NOT NULL DEFAULT 0,
			state INTEGER NOT NULL DEFAULT 0,
			error_msg TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) PutHandler(ctx context.Context, h taskstore.TaskHandler) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_handler(key, bean_name, bean_class_name, method_name)
		VALUES($1, $2, $3, $4)
		ON CONFLICT(key) DO UPDATE SET
			bean_name=excluded.bean_name,
			bean_class_name=excluded.bean_class_name,
			method_name=excluded.method_name;`,
		h.Key, h.BeanName, h.BeanClassName, h.MethodName)
	return err
}

func (s *Store) GetHandler(ctx context.Context, key string) (taskstore.TaskHandler, error) {
	var h taskstore.TaskHandler
	row := s.db.QueryRowContext(ctx, `SELECT key, bean_name, bean_class_name, method_name FROM task_handler WHERE key=$1;`, key)
	if err := row.Scan(&h.Key, &h.BeanName, &h.BeanClassName, &h.MethodName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return taskstore.TaskHandler{}, taskstore.ErrNotFound
		}
		return taskstore.TaskHandler{}, err
	}
	return h, nil
}

func (s *Store) ListHandlers(ctx context.Context) ([]taskstore.TaskHandler, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, bean_name, bean_class_name, method_name FROM task_handler;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []taskstore.TaskHandler
	for rows.Next() {
		var h taskstore.TaskHandler
		if err := rows.Scan(&h.Key, &h.BeanName, &h.BeanClassName, &h.MethodName); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) PutExec(ctx context.Context, e taskstore.ExecDetail) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exec_detail(key, "desc", cron_expr, task_handler_key, init_time, end_time, last_exec_time, exec_count, max_exec_count, state, error_msg)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT(key) DO UPDATE SET
			"desc"=excluded."desc", cron_expr=excluded.cron_expr, task_handler_key=excluded.task_handler_key,
			init_time=excluded.init_time, end_time=excluded.end_time, last_exec_time=excluded.last_exec_time,
			exec_count=excluded.exec_count, max_exec_count=excluded.max_exec_count, state=excluded.state,
			error_msg=excluded.error_msg;`,
		e.Key, e.Desc, e.CronExpr, e.TaskHandlerKey, nullableTime(e.InitTime), nullableTime(e.EndTime),
		nullableTime(e.LastExecTime), e.ExecCount, e.MaxExecCount, int(e.State), e.ErrorMsg)
	return err
}

func (s *Store) GetExec(ctx context.Context, key string) (taskstore.ExecDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, "desc", cron_expr, task_handler_key, init_time, end_time, last_exec_time, exec_count, max_exec_count, state, error_msg FROM exec_detail WHERE key=$1;`, key)
	e, err := scanExec(row)
	if errors.Is(err, sql.ErrNoRows) {
		return taskstore.ExecDetail{}, taskstore.ErrNotFound
	}
	return e, err
}

func (s *Store) ListExecs(ctx context.Context) ([]taskstore.ExecDetail, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, "desc", cron_expr, task_handler_key, init_time, end_time, last_exec_time, exec_count, max_exec_count, state, error_msg FROM exec_detail;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []taskstore.ExecDetail
	for rows.Next() {
		e, err := scanExec(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateExec(ctx context.Context, e taskstore.ExecDetail) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exec_detail SET "desc"=$1, cron_expr=$2, task_handler_key=$3, init_time=$4, end_time=$5,
			last_exec_time=$6, exec_count=$7, max_exec_count=$8, state=$9, error_msg=$10 WHERE key=$11;`,
		e.Desc, e.CronExpr, e.TaskHandlerKey, nullableTime(e.InitTime), nullableTime(e.EndTime),
		nullableTime(e.LastExecTime), e.ExecCount, e.MaxExecCount, int(e.State), e.ErrorMsg, e.Key)
	if err != nil {
		return err
	}
	return checkRows(res)
}

func (s *Store) DeleteExec(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exec_detail WHERE key=$1;`, key)
	return err
}

func (s *Store) UpdateState(ctx context.Context, key string, state taskstore.State) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exec_detail SET state=$1 WHERE key=$2;`, int(state), key)
	if err != nil {
		return err
	}
	return checkRows(res)
}

func (s *Store) UpdateStateToError(ctx context.Context, key string, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exec_detail SET state=$1, error_msg=$2 WHERE key=$3;`, int(taskstore.StateError), errMsg, key)
	if err != nil {
		return err
	}
	return checkRows(res)
}

func (s *Store) IncrementExecCount(ctx context.Context, key string, lastExecTime time.Time) (taskstore.ExecDetail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return taskstore.ExecDetail{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT key, "desc", cron_expr, task_handler_key, init_time, end_time, last_exec_time, exec_count, max_exec_count, state, error_msg FROM exec_detail WHERE key=$1 FOR UPDATE;`, key)
	e, err := scanExec(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return taskstore.ExecDetail{}, taskstore.ErrNotFound
		}
		return taskstore.ExecDetail{}, err
	}
	e.ExecCount++
	e.LastExecTime = lastExecTime
	if _, err := tx.ExecContext(ctx, `UPDATE exec_detail SET exec_count=$1, last_exec_time=$2 WHERE key=$3;`, e.ExecCount, nullableTime(e.LastExecTime), key); err != nil {
		return taskstore.ExecDetail{}, err
	}
	if err := tx.Commit(); err != nil {
		return taskstore.ExecDetail{}, err
	}
	return e, nil
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

type scanner interface {
	Scan(dest ...any) error
}

func scanExec(row scanner) (taskstore.ExecDetail, error) {
	var e taskstore.ExecDetail
	var endTime, lastExec sql.NullTime
	var state int
	if err := row.Scan(&e.Key, &e.Desc, &e.CronExpr, &e.TaskHandlerKey, &e.InitTime, &endTime,
		&lastExec, &e.ExecCount, &e.MaxExecCount, &state, &e.ErrorMsg); err != nil {
		return taskstore.ExecDetail{}, err
	}
	e.State = taskstore.State(state)
	if endTime.Valid {
		e.EndTime = endTime.Time
	}
	if lastExec.Valid {
		e.LastExecTime = lastExec.Time
	}
	return e, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func checkRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskstore.ErrNotFound
	}
	return nil
}

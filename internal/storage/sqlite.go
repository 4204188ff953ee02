package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const (
	keySettings = "settings"
	keyWindow   = "window_position"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(b)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) getKV(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *sqliteStore) putKV(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, string(b),
	)
	return err
}

func (s *sqliteStore) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	var v domain.Settings
	ok, err := s.getKV(ctx, keySettings, &v)
	if err != nil || !ok {
		return domain.Settings{}, false, err
	}
	return v, true, nil
}

func (s *sqliteStore) SaveSettings(ctx context.Context, v domain.Settings) error {
	return s.putKV(ctx, keySettings, v)
}

func (s *sqliteStore) WindowPosition(ctx context.Context) (*domain.WindowPosition, error) {
	var p domain.WindowPosition
	ok, err := s.getKV(ctx, keyWindow, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *sqliteStore) SaveWindowPosition(ctx context.Context, p *domain.WindowPosition) error {
	if p == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, keyWindow)
		return err
	}
	return s.putKV(ctx, keyWindow, p)
}

const alarmColumns = `id, title, kind, enabled, time_of_day, repeat_days, last_triggered, interval_minutes, wait_seconds, sound_enabled`

func (s *sqliteStore) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alarmColumns+` FROM alarms ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE id = ?`, id)
	a, err := scanAlarm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alarm{}, false, nil
	}
	if err != nil {
		return domain.Alarm{}, false, err
	}
	return a, true, nil
}

func (s *sqliteStore) UpsertAlarm(ctx context.Context, a domain.Alarm) error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("alarm id is required")
	}
	var tod, last any
	if a.Time != nil {
		tod = a.Time.String()
	}
	if a.LastTriggered != nil {
		last = a.LastTriggered.String()
	}
	// ON CONFLICT DO UPDATE keeps the row (and its seq), so insertion order survives edits.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms(`+alarmColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, kind=excluded.kind, enabled=excluded.enabled,
			time_of_day=excluded.time_of_day, repeat_days=excluded.repeat_days,
			last_triggered=excluded.last_triggered, interval_minutes=excluded.interval_minutes,
			wait_seconds=excluded.wait_seconds, sound_enabled=excluded.sound_enabled`,
		a.ID, a.Title, string(a.Kind), boolInt(a.Enabled), tod, nullStr(formatDays(a.RepeatDays)), last,
		a.IntervalMinutes, a.WaitSeconds, boolInt(a.SoundEnabled),
	)
	return err
}

func (s *sqliteStore) DeleteAlarm(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(r rowScanner) (domain.Alarm, error) {
	var (
		a                   domain.Alarm
		kind                string
		enabled, sound      int
		tod, days, lastTrig sql.NullString
	)
	if err := r.Scan(&a.ID, &a.Title, &kind, &enabled, &tod, &days, &lastTrig, &a.IntervalMinutes, &a.WaitSeconds, &sound); err != nil {
		return domain.Alarm{}, err
	}
	a.Kind = domain.AlarmKind(kind)
	a.Enabled = enabled != 0
	a.SoundEnabled = sound != 0
	if tod.Valid && tod.String != "" {
		c, err := domain.ParseClock(tod.String)
		if err != nil {
			return domain.Alarm{}, fmt.Errorf("alarm %s: %w", a.ID, err)
		}
		a.Time = &c
	}
	if lastTrig.Valid && lastTrig.String != "" {
		d, err := domain.ParseDate(lastTrig.String)
		if err != nil {
			return domain.Alarm{}, fmt.Errorf("alarm %s: %w", a.ID, err)
		}
		a.LastTriggered = &d
	}
	if days.Valid {
		a.RepeatDays = parseDays(days.String)
	}
	return a, nil
}

func formatDays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func parseDays(s string) []time.Weekday {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []time.Weekday
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

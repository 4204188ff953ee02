package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"
)

// fileStore keeps the whole state in memory and persists it as:
//   - <prefix>.snapshot.json (compacted state)
//   - <prefix>.journal.jsonl (append-only mutations since the snapshot)
//
// The journal is compacted into the snapshot every compactEvery writes and
// on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	writes       int

	settings *domain.Settings
	window   *domain.WindowPosition
	alarms   *alarmSet
}

const compactEvery = 200

const (
	opSettings = "settings"
	opWindow   = "window"
	opUpsert   = "upsert"
	opDelete   = "delete"
)

type journalRecord struct {
	Op       string                 `json:"op"`
	Settings *domain.Settings       `json:"settings,omitempty"`
	Window   *domain.WindowPosition `json:"window,omitempty"`
	Alarm    *domain.Alarm          `json:"alarm,omitempty"`
	ID       string                 `json:"id,omitempty"`
}

type snapshotDoc struct {
	Settings *domain.Settings       `json:"settings,omitempty"`
	Window   *domain.WindowPosition `json:"window_position,omitempty"`
	Alarms   []domain.Alarm         `json:"alarms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		snapshotPath: prefix + ".snapshot.json",
		alarms:       newAlarmSet(),
	}
	journalPath := prefix + ".journal.jsonl"

	if err := s.loadSnapshot(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	n, err := s.replayJournal(journalPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if n > 0 {
		log.Debug("journal replayed", logx.Int("records", n), logx.String("path", journalPath))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journal = jf
	s.writes = n
	return s, nil
}

func (s *fileStore) loadSnapshot() error {
	f, err := os.Open(s.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var doc snapshotDoc
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	s.settings = doc.Settings
	s.window = doc.Window
	for _, a := range doc.Alarms {
		if a.ID == "" {
			continue
		}
		s.alarms.upsert(a)
	}
	return nil
}

func (s *fileStore) replayJournal(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// A torn final line after a crash is expected; skip it.
			continue
		}
		s.applyLocked(r)
		n++
	}
	return n, sc.Err()
}

func (s *fileStore) applyLocked(r journalRecord) {
	switch r.Op {
	case opSettings:
		if r.Settings != nil {
			v := *r.Settings
			s.settings = &v
		}
	case opWindow:
		if r.Window == nil {
			s.window = nil
		} else {
			v := *r.Window
			s.window = &v
		}
	case opUpsert:
		if r.Alarm != nil && r.Alarm.ID != "" {
			s.alarms.upsert(*r.Alarm)
		}
	case opDelete:
		s.alarms.remove(r.ID)
	}
}

// appendLocked writes r to the journal and applies it in memory only after
// the write succeeded.
func (s *fileStore) appendLocked(r journalRecord) error {
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.applyLocked(r)
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	doc := snapshotDoc{Settings: s.settings, Window: s.window, Alarms: s.alarms.list()}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func (s *fileStore) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return domain.Settings{}, false, ErrClosed
	}
	if s.settings == nil {
		return domain.Settings{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *fileStore) SaveSettings(ctx context.Context, v domain.Settings) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(journalRecord{Op: opSettings, Settings: &v})
}

func (s *fileStore) WindowPosition(ctx context.Context) (*domain.WindowPosition, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	if s.window == nil {
		return nil, nil
	}
	p := *s.window
	return &p, nil
}

func (s *fileStore) SaveWindowPosition(ctx context.Context, p *domain.WindowPosition) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(journalRecord{Op: opWindow, Window: p})
}

func (s *fileStore) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	return s.alarms.list(), nil
}

func (s *fileStore) GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return domain.Alarm{}, false, ErrClosed
	}
	a, ok := s.alarms.get(id)
	return a, ok, nil
}

func (s *fileStore) UpsertAlarm(ctx context.Context, a domain.Alarm) error {
	_ = ctx
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("alarm id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(journalRecord{Op: opUpsert, Alarm: &a})
}

func (s *fileStore) DeleteAlarm(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, ErrClosed
	}
	if _, ok := s.alarms.get(id); !ok {
		return false, nil
	}
	if err := s.appendLocked(journalRecord{Op: opDelete, ID: id}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	cerr := s.compactLocked()
	if cerr != nil {
		s.log.Warn("journal compact on close failed", logx.Err(cerr))
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

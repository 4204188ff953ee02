package notifier

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"stretchbot/internal/alarms"
	"stretchbot/internal/domain"
	"stretchbot/internal/engine"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/reminder"
	logx "stretchbot/pkg/logx"
)

type recordSink struct {
	mu   sync.Mutex
	seen []string
	fail bool
}

func (r *recordSink) Name() string { return "record" }

func (r *recordSink) Handle(_ context.Context, ev eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ev.Type)
	if r.fail {
		return errors.New("sink down")
	}
	return nil
}

func (r *recordSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestServiceDeliversInOrderAndDrainsOnStop(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sink := &recordSink{}
	s := New(Config{Enabled: true, QueueSize: 16}, bus, logx.Nop(), sink)
	s.Start(context.Background())

	bus.Publish(eventbus.Event{Type: eventbus.TopicReminderTick})
	bus.Publish(eventbus.Event{Type: eventbus.TopicReminderFired})
	bus.Publish(eventbus.Event{Type: eventbus.TopicAlarmFired})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	got := strings.Join(sink.types(), ",")
	want := "reminder.tick,reminder.fired,alarm.fired"
	if got != want {
		t.Fatalf("delivered = %s, want %s", got, want)
	}
	if st := s.Stats(); st.Delivered != 3 || st.Failed != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestServiceSurvivesSinkErrors(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	bad := &recordSink{fail: true}
	good := &recordSink{}
	s := New(Config{Enabled: true}, bus, logx.Nop(), bad, good)
	s.Start(context.Background())
	bus.Publish(eventbus.Event{Type: eventbus.TopicAlarmFired})
	bus.Publish(eventbus.Event{Type: eventbus.TopicAlarmFired})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	if len(good.types()) != 2 {
		t.Fatalf("good sink saw %v", good.types())
	}
	if st := s.Stats(); st.Failed != 2 || st.Delivered != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestServiceDisabledDoesNotSubscribe(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sink := &recordSink{}
	s := New(Config{Enabled: false}, bus, logx.Nop(), sink)
	s.Start(context.Background())
	bus.Publish(eventbus.Event{Type: eventbus.TopicAlarmFired})
	s.Stop(context.Background())
	if len(sink.types()) != 0 {
		t.Fatalf("disabled notifier delivered %v", sink.types())
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink := NewLogSink(logx.NewWriter(&buf, "debug"), time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = sink.Handle(ctx, eventbus.Event{Type: eventbus.TopicReminderTick, Data: reminder.Snapshot{RemainingSeconds: 100 - i}})
	}
	_ = sink.Handle(ctx, eventbus.Event{Type: eventbus.TopicAlarmFired, Data: alarms.Fire{AlarmID: "a1", Title: "standup"}})

	out := buf.String()
	if n := strings.Count(out, "reminder tick"); n != 1 {
		t.Fatalf("tick lines = %d, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, `"title":"standup"`) {
		t.Fatalf("alarm not logged:\n%s", out)
	}
}

type fakeBot struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, to.Recipient()+":"+what.(string))
	return &tele.Message{ID: len(f.sent)}, nil
}

func TestTelegramSink(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	sink := newTelegramSink(bot, TelegramConfig{ChatID: 42, RatePerSec: 100})
	ctx := context.Background()
	at := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	events := []eventbus.Event{
		{Type: eventbus.TopicReminderTick, Data: reminder.Snapshot{}},
		{Type: eventbus.TopicReminderFired, Data: engine.ReminderFired{WaitSeconds: 30}},
		{Type: eventbus.TopicAlarmFired, Data: alarms.Fire{Title: "standup", Kind: domain.KindTimeOfDay, At: at}},
		{Type: eventbus.TopicAlarmFired, Data: alarms.Fire{Title: "water", Kind: domain.KindInterval, At: at}},
	}
	for _, ev := range events {
		if err := sink.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle(%s): %v", ev.Type, err)
		}
	}
	want := []string{
		"42:🧘 Time to stretch! Take a 30s break.",
		"42:⏰ standup (09:00)",
		"42:🔁 water",
	}
	if strings.Join(bot.sent, "|") != strings.Join(want, "|") {
		t.Fatalf("sent = %q", bot.sent)
	}

	bot.err = errors.New("chat not found")
	if err := sink.Handle(ctx, events[1]); err == nil {
		t.Fatal("send error swallowed")
	}
}

func TestNewTelegramSinkValidates(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramSink(TelegramConfig{ChatID: 1}); err == nil {
		t.Fatal("empty token accepted")
	}
	if _, err := NewTelegramSink(TelegramConfig{Token: "x"}); err == nil {
		t.Fatal("empty chat id accepted")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskledger/internal/llm"
	"taskledger/internal/repository"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyDocuments fails the next failSaves saves, and every load while
// failLoads is set, of one collection.
type flakyDocuments struct {
	*repository.MemoryDocuments
	mu         sync.Mutex
	collection string
	failSaves  int
	failLoads  bool
}

func (f *flakyDocuments) Load(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	fail := name == f.collection && f.failLoads
	f.mu.Unlock()
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return f.MemoryDocuments.Load(ctx, name)
}

func (f *flakyDocuments) setFailLoads(v bool) {
	f.mu.Lock()
	f.failLoads = v
	f.mu.Unlock()
}

func (f *flakyDocuments) Save(ctx context.Context, name string, data []byte) error {
	f.mu.Lock()
	if name == f.collection && f.failSaves > 0 {
		f.failSaves--
		f.mu.Unlock()
		return errors.New("backend unavailable")
	}
	f.mu.Unlock()
	return f.MemoryDocuments.Save(ctx, name, data)
}

func newTestStore(t *testing.T) (*repository.Store, *repository.MemoryDocuments) {
	t.Helper()
	docs := repository.NewMemoryDocuments()
	store, err := repository.NewStore(docs)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, docs
}

type fakeCalendar struct {
	mu         sync.Mutex
	seq        int
	live       map[string]bool
	creates    int
	deletes    int
	failCreate bool
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{live: make(map[string]bool)}
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	if c.failCreate {
		return "", errors.New("calendar down")
	}
	c.seq++
	id := fmt.Sprintf("ev-%d", c.seq)
	c.live[id] = true
	return id, nil
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.live, id)
	return nil
}

func (c *fakeCalendar) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates, c.deletes
}

func (c *fakeCalendar) liveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

type sentMessage struct {
	channel, recipient, text string
}

// fakeDelivery fails the first failFirst calls.
type fakeDelivery struct {
	mu        sync.Mutex
	failFirst int
	attempts  int
	sent      []sentMessage
	onSend    func(text string)
}

func (d *fakeDelivery) Deliver(_ context.Context, channel, recipient, text string) error {
	d.mu.Lock()
	d.attempts++
	if d.attempts <= d.failFirst {
		d.mu.Unlock()
		return errors.New("network error")
	}
	d.sent = append(d.sent, sentMessage{channel, recipient, text})
	hook := d.onSend
	d.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return nil
}

func (d *fakeDelivery) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger(context.Context) { c.n++ }

// scriptedModel replays fixed replies, or fails every step when err is set.
type scriptedModel struct {
	replies []llm.Reply
	err     error
	user    string
	tools   []llm.ToolSpec
	results []string
}

func (m *scriptedModel) NewConversation(_, user string, tools []llm.ToolSpec) llm.Conversation {
	m.user = user
	m.tools = tools
	return &scriptedConversation{m: m}
}

type scriptedConversation struct {
	m    *scriptedModel
	step int
}

func (c *scriptedConversation) Step(context.Context) (llm.Reply, error) {
	if c.m.err != nil {
		return llm.Reply{}, c.m.err
	}
	if c.step >= len(c.m.replies) {
		return llm.Reply{}, nil
	}
	r := c.m.replies[c.step]
	c.step++
	return r, nil
}

func (c *scriptedConversation) AddToolResult(_, content string) {
	c.m.results = append(c.m.results, content)
}

package crontab

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu      sync.Mutex
	records map[string]string
	err     error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{records: map[string]string{}}
}

func (m *fakeMirror) Upsert(name, expr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[name] = expr
	return nil
}

func (m *fakeMirror) Delete(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.records[name]
	delete(m.records, name)
	return ok, nil
}

func (m *fakeMirror) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}

type fakeRecorder struct {
	ops       []string
	scheduled int
}

func (r *fakeRecorder) RecordReconcile(op, result string, _ time.Duration) {
	r.ops = append(r.ops, op+":"+result)
}

func (r *fakeRecorder) SetScheduled(count int) { r.scheduled = count }

func countTagged(content, name string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if Matches(line, testTag, name) {
			n++
		}
	}
	return n
}

func newTestReconciler(content string) (*Reconciler, *MemoryTable, *fakeMirror) {
	table := NewMemoryTable(content)
	mirror := newFakeMirror()
	return NewReconciler(table, mirror, testTag, nil, nil), table, mirror
}

func TestReconciler_UpsertIntoEmptyTable(t *testing.T) {
	r, table, mirror := newTestReconciler("")

	require.NoError(t, r.Upsert(context.Background(), "ping", "*/5 * * * *", "/srv/functions/ping"))

	assert.Equal(t, "*/5 * * * * /srv/functions/ping # # FaaS PiZero ping\n", table.Content())
	assert.Equal(t, map[string]string{"ping": "*/5 * * * *"}, mirror.snapshot())
}

func TestReconciler_UpsertReplacesExisting(t *testing.T) {
	r, table, mirror := newTestReconciler(
		"0 3 * * * backup\n* * * * * /srv/functions/ping # # FaaS PiZero ping\n")

	require.NoError(t, r.Upsert(context.Background(), "ping", "0 * * * *", "/srv/functions/ping"))

	assert.Equal(t,
		"0 3 * * * backup\n0 * * * * /srv/functions/ping # # FaaS PiZero ping\n",
		table.Content())
	assert.Equal(t, "0 * * * *", mirror.snapshot()["ping"])
}

func TestReconciler_UpsertHealsDuplicates(t *testing.T) {
	r, table, _ := newTestReconciler(
		"* * * * * /f/ping # # FaaS PiZero ping\n" +
			"0 3 * * * backup\n" +
			"5 * * * * /f/ping # # FaaS PiZero ping\n")

	require.NoError(t, r.Upsert(context.Background(), "ping", "*/10 * * * *", "/f/ping"))

	assert.Equal(t, 1, countTagged(table.Content(), "ping"))
	assert.Contains(t, table.Content(), "0 3 * * * backup")
	assert.Contains(t, table.Content(), "*/10 * * * * /f/ping")
}

func TestReconciler_DoesNotTouchPrefixNamedFunction(t *testing.T) {
	foobar := "0 * * * * /f/foobar # # FaaS PiZero foobar"
	r, table, _ := newTestReconciler(foobar + "\n")
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, "foo", "* * * * *", "/f/foo"))
	assert.Contains(t, table.Content(), foobar)

	require.NoError(t, r.Remove(ctx, "foo"))
	assert.Equal(t, foobar+"\n", table.Content())
}

func TestReconciler_RemoveIsIdempotent(t *testing.T) {
	r, table, mirror := newTestReconciler("0 3 * * * backup\n")
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "ping", "*/5 * * * *", "/f/ping"))

	require.NoError(t, r.Remove(ctx, "ping"))
	afterFirst, mirrorFirst := table.Content(), mirror.snapshot()

	require.NoError(t, r.Remove(ctx, "ping"))
	assert.Equal(t, afterFirst, table.Content())
	assert.Equal(t, mirrorFirst, mirror.snapshot())
	assert.Equal(t, "0 3 * * * backup\n", table.Content())
	assert.NotContains(t, mirror.snapshot(), "ping")
}

func TestReconciler_RemoveNeverScheduled(t *testing.T) {
	r, _, _ := newTestReconciler("")
	assert.NoError(t, r.Remove(context.Background(), "ghost"))
}

func TestReconciler_RoundTrip(t *testing.T) {
	r, _, mirror := newTestReconciler("")
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, "ping", "*/5 * * * *", "/f/ping"))
	assert.Equal(t, map[string]string{"ping": "*/5 * * * *"}, mirror.snapshot())

	require.NoError(t, r.Remove(ctx, "ping"))
	assert.NotContains(t, mirror.snapshot(), "ping")
}

func TestReconciler_InvalidExpressionChangesNothing(t *testing.T) {
	r, table, mirror := newTestReconciler("0 3 * * * backup\n")

	err := r.Upsert(context.Background(), "ping", "* * *", "/f/ping")

	assert.ErrorIs(t, err, ErrInvalidExpression)
	assert.Equal(t, 0, table.Writes())
	assert.Equal(t, "0 3 * * * backup\n", table.Content())
	assert.Empty(t, mirror.snapshot())
}

func TestReconciler_ExpressionCannotClaimAnotherName(t *testing.T) {
	bar := "0 * * * * /f/bar # # FaaS PiZero bar"
	r, table, mirror := newTestReconciler(bar + "\n")
	ctx := context.Background()

	err := r.Upsert(ctx, "foo", "* * * * * # FaaS PiZero bar", "/f/foo")
	assert.ErrorIs(t, err, ErrInvalidExpression)
	assert.Equal(t, 0, table.Writes())

	require.NoError(t, r.Upsert(ctx, "foo", "* * * * *", "/f/foo"))
	require.NoError(t, r.Remove(ctx, "bar"))
	assert.Equal(t, "* * * * * /f/foo # # FaaS PiZero foo\n", table.Content())
	assert.Equal(t, map[string]string{"foo": "* * * * *"}, mirror.snapshot())
}

func TestReconciler_InvalidName(t *testing.T) {
	r, table, _ := newTestReconciler("")
	ctx := context.Background()

	assert.ErrorIs(t, r.Upsert(ctx, "", "* * * * *", "/f/x"), ErrInvalidName)
	assert.ErrorIs(t, r.Upsert(ctx, "a b", "* * * * *", "/f/x"), ErrInvalidName)
	assert.ErrorIs(t, r.Remove(ctx, ""), ErrInvalidName)
	assert.Equal(t, 0, table.Writes())
}

func TestReconciler_WriteFailureLeavesMirrorUnchanged(t *testing.T) {
	r, table, mirror := newTestReconciler("")
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "ping", "*/5 * * * *", "/f/ping"))
	before := mirror.snapshot()

	table.FailWrites(errors.New("exit status 1"), "crontab: installing new crontab failed")

	err := r.Upsert(ctx, "ping", "0 * * * *", "/f/ping")
	assert.ErrorIs(t, err, ErrTableWrite)
	assert.Equal(t, "crontab: installing new crontab failed", Diagnostic(err))
	assert.Equal(t, before, mirror.snapshot())

	err = r.Remove(ctx, "ping")
	assert.ErrorIs(t, err, ErrTableWrite)
	assert.Equal(t, before, mirror.snapshot())
}

func TestReconciler_ReadFailureAborts(t *testing.T) {
	r, table, mirror := newTestReconciler("0 3 * * * backup\n")
	table.FailReads(errors.New("exit status 1"), "crontab: permission denied")

	err := r.Upsert(context.Background(), "ping", "* * * * *", "/f/ping")

	assert.ErrorIs(t, err, ErrTableRead)
	assert.Equal(t, 0, table.Writes())
	assert.Empty(t, mirror.snapshot())
}

func TestReconciler_MirrorFailureAfterWrite(t *testing.T) {
	r, table, mirror := newTestReconciler("")
	mirror.err = errors.New("disk full")

	err := r.Upsert(context.Background(), "ping", "* * * * *", "/f/ping")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule mirror")
	assert.Equal(t, 1, countTagged(table.Content(), "ping"))
}

func TestReconciler_AtMostOneLinePerName(t *testing.T) {
	r, table, _ := newTestReconciler("")
	ctx := context.Background()

	ops := []struct {
		upsert bool
		name   string
		expr   string
	}{
		{true, "a", "* * * * *"},
		{true, "b", "0 * * * *"},
		{true, "a", "5 * * * *"},
		{true, "ab", "10 * * * *"},
		{false, "b", ""},
		{true, "a", "15 * * * *"},
		{true, "b", "20 * * * *"},
		{false, "ab", ""},
	}
	for _, op := range ops {
		if op.upsert {
			require.NoError(t, r.Upsert(ctx, op.name, op.expr, "/f/"+op.name))
		} else {
			require.NoError(t, r.Remove(ctx, op.name))
		}
		for _, name := range []string{"a", "b", "ab"} {
			assert.LessOrEqual(t, countTagged(table.Content(), name), 1)
		}
	}

	content := table.Content()
	assert.Equal(t, 1, countTagged(content, "a"))
	assert.Equal(t, 1, countTagged(content, "b"))
	assert.Equal(t, 0, countTagged(content, "ab"))
	assert.Contains(t, content, "15 * * * * /f/a")
}

func TestReconciler_ConcurrentUpsertsSerialized(t *testing.T) {
	r, table, mirror := newTestReconciler("")
	ctx := context.Background()

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, r.Upsert(ctx, name, "* * * * *", "/f/"+name))
		}(name)
	}
	wg.Wait()

	for _, name := range names {
		assert.Equal(t, 1, countTagged(table.Content(), name), name)
	}
	assert.Len(t, mirror.snapshot(), len(names))
}

func TestReconciler_OutsideEditBetweenCallsIsKept(t *testing.T) {
	r, table, _ := newTestReconciler("")
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "ping", "* * * * *", "/f/ping"))

	table.Set(table.Content() + "0 4 * * * /usr/bin/other-job\n")
	require.NoError(t, r.Upsert(ctx, "pong", "* * * * *", "/f/pong"))

	assert.Contains(t, table.Content(), "/usr/bin/other-job")
}

func TestReconciler_Entries(t *testing.T) {
	r, _, _ := newTestReconciler("0 3 * * * backup\n* * * * * /f/ping # # FaaS PiZero ping\n")

	owned, err := r.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "* * * * *", owned["ping"].Schedule)
}

func TestReconciler_RecordsOutcomes(t *testing.T) {
	table := NewMemoryTable("")
	rec := &fakeRecorder{}
	r := NewReconciler(table, newFakeMirror(), testTag, nil, rec)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, "a", "* * * * *", "/f/a"))
	require.NoError(t, r.Upsert(ctx, "b", "* * * * *", "/f/b"))
	assert.Equal(t, 2, rec.scheduled)

	assert.Error(t, r.Upsert(ctx, "c", "* *", "/f/c"))
	require.NoError(t, r.Remove(ctx, "a"))

	assert.Equal(t, []string{"upsert:ok", "upsert:ok", "upsert:error", "remove:ok"}, rec.ops)
	assert.Equal(t, 1, rec.scheduled)
}

func TestReconciler_SystemTableLayout(t *testing.T) {
	table := NewMemoryTable("SHELL=/bin/sh\n17 * * * * root run-parts /etc/cron.hourly\n")
	r := NewReconciler(table, newFakeMirror(), testTag, nil, nil, WithSystemUser("pi"))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, "ping", "*/5 * * * *", "/f/ping"))
	require.NoError(t, r.Upsert(ctx, "ping", "0 * * * *", "/f/ping"))

	assert.Equal(t,
		"SHELL=/bin/sh\n17 * * * * root run-parts /etc/cron.hourly\n0 * * * * pi /f/ping # # FaaS PiZero ping\n",
		table.Content())

	owned, err := r.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pi", owned["ping"].User)
	assert.Equal(t, "/f/ping", owned["ping"].Command)

	require.NoError(t, r.Remove(ctx, "ping"))
	assert.Equal(t, "SHELL=/bin/sh\n17 * * * * root run-parts /etc/cron.hourly\n", table.Content())
}

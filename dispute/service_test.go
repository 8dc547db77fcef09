package dispute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disputeflow/catalog"
	"disputeflow/outbox"
	"disputeflow/test/fakes"
	"disputeflow/transaction"
)

// staged holds the writes of one open transaction.
type staged struct {
	disputes map[string]Dispute
	events   []Event
	outbox   []outbox.Message
	locked   []string
}

// memStore applies staged writes on commit and drops them on rollback.
// GetForUpdate holds a per-dispute lock until the owning tx finishes.
type memStore struct {
	mu       sync.Mutex
	disputes map[string]Dispute
	events   []Event
	outbox   []outbox.Message
	open     map[*fakes.Tx]*staged
	rowLocks map[string]*sync.Mutex

	failAppend  error
	failEnqueue error
}

func newMemStore() *memStore {
	return &memStore{
		disputes: map[string]Dispute{},
		open:     map[*fakes.Tx]*staged{},
		rowLocks: map[string]*sync.Mutex{},
	}
}

func (m *memStore) attach(pool *fakes.Pool) {
	pool.OnCommit = func(tx *fakes.Tx) { m.finish(tx, true) }
	pool.OnRollback = func(tx *fakes.Tx) { m.finish(tx, false) }
}

func (m *memStore) stage(tx pgx.Tx) *staged {
	ftx := tx.(*fakes.Tx)
	s, ok := m.open[ftx]
	if !ok {
		s = &staged{disputes: map[string]Dispute{}}
		m.open[ftx] = s
	}
	return s
}

func (m *memStore) finish(tx *fakes.Tx, commit bool) {
	m.mu.Lock()
	s, ok := m.open[tx]
	delete(m.open, tx)
	if ok && commit {
		for id, d := range s.disputes {
			m.disputes[id] = d
		}
		m.events = append(m.events, s.events...)
		m.outbox = append(m.outbox, s.outbox...)
	}
	var unlock []*sync.Mutex
	if ok {
		for _, id := range s.locked {
			unlock = append(unlock, m.rowLocks[id])
		}
	}
	m.mu.Unlock()
	for _, l := range unlock {
		l.Unlock()
	}
}

func (m *memStore) Insert(_ context.Context, tx pgx.Tx, d Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.disputes[d.ID]; exists {
		return ErrConflict
	}
	m.stage(tx).disputes[d.ID] = d
	return nil
}

func (m *memStore) GetForUpdate(_ context.Context, tx pgx.Tx, id string) (Dispute, error) {
	m.mu.Lock()
	l, ok := m.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[id] = l
	}
	m.mu.Unlock()

	l.Lock()

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stage(tx)
	s.locked = append(s.locked, id)
	d, found := m.disputes[id]
	if !found {
		return Dispute{}, ErrNotFound
	}
	return d, nil
}

func (m *memStore) UpdateStatus(_ context.Context, tx pgx.Tx, d Dispute, prevVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.disputes[d.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != prevVersion {
		return ErrConflict
	}
	m.stage(tx).disputes[d.ID] = d
	return nil
}

func (m *memStore) AppendEvent(_ context.Context, tx pgx.Tx, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	if _, err := EncodePayload(e.Payload); err != nil {
		return err
	}
	s := m.stage(tx)
	s.events = append(s.events, e)
	return nil
}

func (m *memStore) Enqueue(_ context.Context, tx pgx.Tx, msg outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEnqueue != nil {
		return m.failEnqueue
	}
	s := m.stage(tx)
	s.outbox = append(s.outbox, msg)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	return d, nil
}

func (m *memStore) sorted(keep func(Dispute) bool) []Dispute {
	out := []Dispute{}
	for _, d := range m.disputes {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(d Dispute) bool { return d.UserID == userID }), nil
}

func (m *memStore) List(_ context.Context, f ListFilters) ([]Dispute, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(d Dispute) bool { return f.StatusCode == "" || d.StatusCode == f.StatusCode })
	start := min(f.offset(), len(all))
	end := min(start+f.PageSize, len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) ListEvents(_ context.Context, disputeID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Event{}
	for _, e := range m.events {
		if e.DisputeID == disputeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) counts() (disputes, events, messages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.disputes), len(m.events), len(m.outbox)
}

type stubCatalog struct {
	reasons    map[string]bool
	statuses   map[string]bool
	eventTypes map[string]bool
	err        error
}

func defaultCatalog() *stubCatalog {
	set := func(codes ...string) map[string]bool {
		m := map[string]bool{}
		for _, c := range codes {
			m[c] = true
		}
		return m
	}
	return &stubCatalog{
		reasons:    set("UNAUTHORIZED", "DUPLICATE", "INCORRECT_AMOUNT", "MERCHANT_ERROR", "FRAUD"),
		statuses:   set("PENDING", "UNDER_REVIEW", "RESOLVED", "REJECTED", "CANCELLED"),
		eventTypes: set("CREATED", "STATUS_UPDATED", "COMMENT_ADDED", "ATTACHMENT_UPLOADED"),
	}
}

func (c *stubCatalog) find(set map[string]bool, code string) (catalog.Entry, error) {
	if c.err != nil {
		return catalog.Entry{}, c.err
	}
	if !set[code] {
		return catalog.Entry{}, catalog.ErrNotFound
	}
	return catalog.Entry{Code: code}, nil
}

func (c *stubCatalog) FindReason(_ context.Context, code string) (catalog.Entry, error) {
	return c.find(c.reasons, code)
}

func (c *stubCatalog) FindStatus(_ context.Context, code string) (catalog.Entry, error) {
	return c.find(c.statuses, code)
}

func (c *stubCatalog) FindEventType(_ context.Context, code string) (catalog.Entry, error) {
	return c.find(c.eventTypes, code)
}

type stubTransactions map[string]bool

func (s stubTransactions) FindTransaction(_ context.Context, id string) (transaction.Record, error) {
	if !s[id] {
		return transaction.Record{}, transaction.ErrNotFound
	}
	return transaction.Record{ID: id}, nil
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify() { c.n.Add(1) }

type fixture struct {
	svc      *Service
	store    *memStore
	pool     *fakes.Pool
	catalog  *stubCatalog
	notifier *countingNotifier
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	pool := &fakes.Pool{}
	store.attach(pool)
	cat := defaultCatalog()
	notifier := &countingNotifier{}
	var logs bytes.Buffer
	var seq atomic.Int64
	svc := NewService(pool, store, cat, stubTransactions{"T1": true, "T2": true}, store).
		WithNotifier(notifier).
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))).
		WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }).
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) })
	return &fixture{svc: svc, store: store, pool: pool, catalog: cat, notifier: notifier, logs: &logs}
}

func TestCreateDispute_PersistsDisputeEventAndOutboxTogether(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	d, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "INCORRECT_AMOUNT"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, d.StatusCode)
	assert.Equal(t, "T1", d.TransactionRef)
	assert.Equal(t, "U1", d.UserID)
	assert.Equal(t, 1, d.Version)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	evts, err := f.svc.ListDisputeEvents(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, EventCreated, evts[0].EventTypeCode)
	payload, ok := evts[0].Payload.(CreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "INCORRECT_AMOUNT", payload.ReasonCode)
	assert.Equal(t, StatusPending, payload.StatusCode)

	require.Len(t, f.store.outbox, 1)
	msg := f.store.outbox[0]
	assert.Equal(t, TopicCreated, msg.Topic)
	assert.Equal(t, d.ID, msg.PartitionKey)
	assert.Equal(t, evts[0].ID, msg.EventID)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, d.Snapshot(), snap)

	require.Len(t, f.pool.Txs, 1)
	assert.True(t, f.pool.Txs[0].Committed)
	assert.EqualValues(t, 1, f.notifier.n.Load())
}

func TestCreateDispute_RejectsBeforeOpeningTransaction(t *testing.T) {
	cases := []struct {
		name    string
		params  CreateParams
		mutate  func(*stubCatalog)
		wantErr error
	}{
		{"missing user", CreateParams{TransactionRef: "T1", ReasonCode: "FRAUD"}, nil, ErrInvalidArgument},
		{"missing transaction", CreateParams{UserID: "U1", ReasonCode: "FRAUD"}, nil, ErrInvalidArgument},
		{"missing reason", CreateParams{TransactionRef: "T1", UserID: "U1"}, nil, ErrInvalidArgument},
		{"unknown transaction", CreateParams{TransactionRef: "T9", UserID: "U1", ReasonCode: "FRAUD"}, nil, ErrNotFound},
		{"unknown reason", CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "BORED"}, nil, ErrInvalidArgument},
		{
			"pending status missing",
			CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"},
			func(c *stubCatalog) { delete(c.statuses, StatusPending) },
			ErrInvariantViolation,
		},
		{
			"created event type missing",
			CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"},
			func(c *stubCatalog) { delete(c.eventTypes, EventCreated) },
			ErrInvariantViolation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.mutate != nil {
				tc.mutate(f.catalog)
			}
			_, err := f.svc.CreateDispute(t.Context(), tc.params)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.pool.Txs)
			d, e, o := f.store.counts()
			assert.Zero(t, d+e+o)
			assert.Zero(t, f.notifier.n.Load())
		})
	}
}

func TestCreateDispute_InvariantViolationIsLogged(t *testing.T) {
	f := newFixture(t)
	delete(f.catalog.statuses, StatusPending)

	_, err := f.svc.CreateDispute(t.Context(), CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, f.logs.String(), `"outcome":"invariant_violation"`)
	assert.Contains(t, f.logs.String(), `"level":"ERROR"`)
}

func TestCreateDispute_CatalogBackendErrorIsNotInvalidArgument(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("connection refused")

	_, err := f.svc.CreateDispute(t.Context(), CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, f.pool.Txs)
}

func TestCreateDispute_LeavesNoTraceWhenAnyWriteFails(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fixture)
	}{
		{"audit write fails", func(f *fixture) { f.store.failAppend = errors.New("audit down") }},
		{"outbox write fails", func(f *fixture) { f.store.failEnqueue = errors.New("outbox down") }},
		{"commit fails", func(f *fixture) { f.pool.CommitErr = errors.New("serialization failure") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)

			_, err := f.svc.CreateDispute(t.Context(), CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
			require.Error(t, err)

			d, e, o := f.store.counts()
			assert.Zero(t, d, "dispute row must not be visible")
			assert.Zero(t, e)
			assert.Zero(t, o)
			require.Len(t, f.pool.Txs, 1)
			assert.True(t, f.pool.Txs[0].RolledBack)
			assert.Zero(t, f.notifier.n.Load())
		})
	}
}

func TestCreateDispute_BeginError(t *testing.T) {
	f := newFixture(t)
	f.pool.BeginErr = errors.New("pool closed")

	_, err := f.svc.CreateDispute(t.Context(), CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.ErrorContains(t, err, "pool closed")
}

func TestUpdateDisputeStatus_ResolvesDispute(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "INCORRECT_AMOUNT"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: created.ID, StatusCode: "RESOLVED"})
	require.NoError(t, err)

	assert.Equal(t, "RESOLVED", updated.StatusCode)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updatedAt must advance even when the clock does not")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, created.ReasonCode, updated.ReasonCode)

	got, found, err := f.svc.GetDisputeByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, updated, got)

	evts, err := f.svc.ListDisputeEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, EventStatusUpdated, evts[1].EventTypeCode)
	assert.Equal(t, StatusUpdatedPayload{OldStatus: "PENDING", NewStatus: "RESOLVED", UpdatedAt: updated.UpdatedAt}, evts[1].Payload)

	require.Len(t, f.store.outbox, 2)
	assert.Equal(t, TopicUpdated, f.store.outbox[1].Topic)
	assert.Equal(t, created.ID, f.store.outbox[1].PartitionKey)
	assert.EqualValues(t, 2, f.notifier.n.Load())
}

func TestUpdateDisputeStatus_Errors(t *testing.T) {
	stale := 7
	cases := []struct {
		name    string
		params  func(id string) UpdateStatusParams
		setup   func(*fixture)
		wantErr error
		opened  bool
	}{
		{
			name:    "unknown dispute",
			params:  func(string) UpdateStatusParams { return UpdateStatusParams{DisputeID: "nope", StatusCode: "RESOLVED"} },
			wantErr: ErrNotFound,
			opened:  true,
		},
		{
			name:    "unknown status",
			params:  func(id string) UpdateStatusParams { return UpdateStatusParams{DisputeID: id, StatusCode: "ARCHIVED"} },
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "status updated event type missing",
			params:  func(id string) UpdateStatusParams { return UpdateStatusParams{DisputeID: id, StatusCode: "RESOLVED"} },
			setup:   func(f *fixture) { delete(f.catalog.eventTypes, EventStatusUpdated) },
			wantErr: ErrInvariantViolation,
		},
		{
			name: "stale version",
			params: func(id string) UpdateStatusParams {
				return UpdateStatusParams{DisputeID: id, StatusCode: "RESOLVED", ExpectedVersion: &stale}
			},
			wantErr: ErrConflict,
			opened:  true,
		},
		{
			name:    "transition denied by table",
			params:  func(id string) UpdateStatusParams { return UpdateStatusParams{DisputeID: id, StatusCode: "RESOLVED"} },
			setup:   func(f *fixture) { f.svc.WithPolicy(DefaultTransitionTable()) },
			wantErr: ErrInvalidTransition,
			opened:  true,
		},
		{
			name:   "audit write fails",
			params: func(id string) UpdateStatusParams { return UpdateStatusParams{DisputeID: id, StatusCode: "RESOLVED"} },
			setup:  func(f *fixture) { f.store.failAppend = errors.New("audit down") },
			opened: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := t.Context()
			created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
			require.NoError(t, err)
			if tc.setup != nil {
				tc.setup(f)
			}

			_, err = f.svc.UpdateDisputeStatus(ctx, tc.params(created.ID))
			require.Error(t, err)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}

			if tc.opened {
				require.Len(t, f.pool.Txs, 2)
				assert.True(t, f.pool.Last().RolledBack)
			} else {
				assert.Len(t, f.pool.Txs, 1)
			}
			got, _, err := f.svc.GetDisputeByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, got, "prior state must be intact")
			_, e, o := f.store.counts()
			assert.Equal(t, 1, e)
			assert.Equal(t, 1, o)
			assert.EqualValues(t, 1, f.notifier.n.Load())
		})
	}
}

func TestUpdateDisputeStatus_MatchingVersionApplies(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.NoError(t, err)

	v := created.Version
	updated, err := f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: created.ID, StatusCode: "UNDER_REVIEW", ExpectedVersion: &v})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: created.ID, StatusCode: "RESOLVED", ExpectedVersion: &v})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateDisputeStatus_AllowAllPermitsRegression(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.NoError(t, err)

	for _, status := range []string{"RESOLVED", "PENDING", "PENDING"} {
		_, err := f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: created.ID, StatusCode: status})
		require.NoError(t, err)
	}
	evts, err := f.svc.ListDisputeEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evts, 4)
	assert.Equal(t, StatusUpdatedPayload{OldStatus: "PENDING", NewStatus: "PENDING", UpdatedAt: evts[3].CreatedAt}, evts[3].Payload)
}

func TestUpdateDisputeStatus_ConcurrentUpdatesSerialise(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.NoError(t, err)

	statuses := []string{"UNDER_REVIEW", "RESOLVED", "REJECTED", "PENDING", "CANCELLED"}
	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: created.ID, StatusCode: statuses[i%len(statuses)]})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, found, err := f.svc.GetDisputeByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, workers+1, final.Version)

	evts, err := f.svc.ListDisputeEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evts, workers+1)
	prevStatus := StatusPending
	prevAt := created.UpdatedAt
	for _, e := range evts[1:] {
		p := e.Payload.(StatusUpdatedPayload)
		assert.Equal(t, prevStatus, p.OldStatus, "each update must observe the status it replaced")
		assert.True(t, p.UpdatedAt.After(prevAt))
		prevStatus, prevAt = p.NewStatus, p.UpdatedAt
	}
	assert.Equal(t, final.StatusCode, prevStatus)
	assert.Len(t, f.store.outbox, workers+1)
}

func TestGetDisputeByID_UnknownIsNotAnError(t *testing.T) {
	f := newFixture(t)
	d, found, err := f.svc.GetDisputeByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, d)
}

func TestGetDisputeByID_RepeatedReadsAreIdentical(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	created, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.NoError(t, err)
	_, eventsBefore, messagesBefore := f.store.counts()

	first, found, err := f.svc.GetDisputeByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	second, found, err := f.svc.GetDisputeByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, first, second)
	assert.Equal(t, created, first)
	_, eventsAfter, messagesAfter := f.store.counts()
	assert.Equal(t, eventsBefore, eventsAfter)
	assert.Equal(t, messagesBefore, messagesAfter)
}

func TestGetDisputesByUser(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	first, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
	require.NoError(t, err)
	second, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T2", UserID: "U1", ReasonCode: "DUPLICATE"})
	require.NoError(t, err)
	_, err = f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U2", ReasonCode: "FRAUD"})
	require.NoError(t, err)

	got, err := f.svc.GetDisputesByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	none, err := f.svc.GetDisputesByUser(ctx, "U3")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.GetDisputesByUser(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListDisputeEvents_UnknownDispute(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListDisputeEvents(t.Context(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListDisputes_FiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	for i := range 5 {
		d, err := f.svc.CreateDispute(ctx, CreateParams{TransactionRef: "T1", UserID: "U1", ReasonCode: "FRAUD"})
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = f.svc.UpdateDisputeStatus(ctx, UpdateStatusParams{DisputeID: d.ID, StatusCode: "UNDER_REVIEW"})
			require.NoError(t, err)
		}
	}

	page, err := f.svc.ListDisputes(ctx, ListFilters{StatusCode: "UNDER_REVIEW", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	for _, d := range page.Items {
		assert.Equal(t, "UNDER_REVIEW", d.StatusCode)
	}

	page, err = f.svc.ListDisputes(ctx, ListFilters{Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 5, page.Total)

	page, err = f.svc.ListDisputes(ctx, ListFilters{Page: math.MaxInt, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, maxPage, page.Page)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.Total)
	assert.Positive(t, ListFilters{Page: math.MaxInt, PageSize: math.MaxInt}.normalize().offset())

	_, err = f.svc.ListDisputes(ctx, ListFilters{StatusCode: "ARCHIVED"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

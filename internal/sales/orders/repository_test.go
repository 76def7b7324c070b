package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/shared"
)

type execCall struct {
	sql  string
	args []interface{}
}

type fakeRow struct {
	value int64
	err   error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	p, ok := dest[0].(*int64)
	if !ok {
		return fmt.Errorf("unexpected scan target %T", dest[0])
	}
	*p = r.value
	return nil
}

// fakeDB mimics the statements the repository issues. The sequence upsert
// behaves like sale_order_sequences: seeded from the highest issued number
// on first use, incremented afterwards.
type fakeDB struct {
	mu           sync.Mutex
	orderNos     []string
	counters     map[time.Time]int64
	calls        []execCall
	rowsAffected int64
	execErr      error
	insertErr    error
}

func newFakeDB(orderNos ...string) *fakeDB {
	return &fakeDB{orderNos: orderNos, counters: map[time.Time]int64{}, rowsAffected: 1}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.rowsAffected)), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("query not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql: sql, args: args})

	switch {
	case strings.Contains(sql, "sale_order_sequences"):
		day := args[0].(time.Time)
		prefix := strings.TrimSuffix(args[1].(string), "%")
		seq, ok := f.counters[day]
		if !ok {
			for _, no := range f.orderNos {
				if n, err := strconv.ParseInt(strings.TrimPrefix(no, prefix), 10, 64); strings.HasPrefix(no, prefix) && err == nil && n > seq {
					seq = n
				}
			}
		}
		f.counters[day] = seq + 1
		return fakeRow{value: seq + 1}
	case strings.Contains(sql, "INSERT INTO sale_orders"):
		return fakeRow{value: 1, err: f.insertErr}
	default:
		return fakeRow{err: pgx.ErrNoRows}
	}
}

func (f *fakeDB) deleteOrder(no string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.orderNos {
		if existing == no {
			f.orderNos = append(f.orderNos[:i], f.orderNos[i+1:]...)
			return
		}
	}
}

func (f *fakeDB) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestGenerateNumberNeverReusesDeletedNumbers(t *testing.T) {
	tx := newFakeDB()
	seq := newFakeDB("SO-240110-0001", "SO-240110-0003")
	repo := &repository{db: tx, seq: seq}
	day := time.Date(2024, 1, 10, 15, 4, 0, 0, time.UTC)

	no, err := repo.GenerateNumber(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "SO-240110-0004", no)

	seq.deleteOrder("SO-240110-0003")
	no, err = repo.GenerateNumber(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "SO-240110-0005", no)

	other, err := repo.GenerateNumber(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "SO-240111-0001", other)

	assert.Zero(t, tx.callCount(), "numbering must not run inside the order transaction")
	assert.Contains(t, seq.calls[0].sql, "ON CONFLICT (day) DO UPDATE")
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), seq.calls[0].args[0])
}

func TestGenerateNumberConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	seq := newFakeDB()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	const workers = 32
	numbers := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo := &repository{db: newFakeDB(), seq: seq}
			no, err := repo.GenerateNumber(context.Background(), day)
			if assert.NoError(t, err) {
				numbers <- no
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for no := range numbers {
		assert.False(t, seen[no], "duplicate %s", no)
		seen[no] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen[fmt.Sprintf("SO-240110-%04d", workers)])
}

func TestGenerateNumberPropagatesFailure(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &repository{seq: failingRowDB{fakeDB: newFakeDB(), err: boom}}
	_, err := repo.GenerateNumber(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
}

type failingRowDB struct {
	*fakeDB
	err error
}

func (f failingRowDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return fakeRow{err: f.err}
}

func TestRepositoryUpdateIsCompareAndSet(t *testing.T) {
	fake := newFakeDB()
	repo := &repository{db: fake}
	order := &SaleOrder{ID: 7, Status: lifecycle.StatusReadyForDispatch, OrderFields: validPayload().OrderFields}

	require.NoError(t, repo.Update(context.Background(), order, 42))
	call := fake.calls[0]
	assert.Contains(t, call.sql, "WHERE id = $1 AND status = $2")
	assert.Contains(t, call.sql, fmt.Sprintf("$%d", len(editableColumns)+3))
	require.Len(t, call.args, len(editableColumns)+3)
	assert.Equal(t, int64(7), call.args[0])
	assert.Equal(t, "READY_FOR_DISPATCH", call.args[1])
	assert.Equal(t, int64(42), call.args[2])

	fake.rowsAffected = 0
	err := repo.Update(context.Background(), order, 42)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestRepositoryUpdateStatusConflicts(t *testing.T) {
	fake := newFakeDB()
	repo := &repository{db: fake}
	upd := StatusUpdate{ID: 3, From: lifecycle.StatusInProduction, To: lifecycle.StatusReadyForDispatch}

	require.NoError(t, repo.UpdateStatus(context.Background(), upd))
	assert.Contains(t, fake.calls[0].sql, "WHERE id = $1 AND status = $2")
	assert.Equal(t, "IN_PRODUCTION", fake.calls[0].args[1])
	assert.Equal(t, "READY_FOR_DISPATCH", fake.calls[0].args[2])

	fake.rowsAffected = 0
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), upd), ErrStatusConflict)

	fake.execErr = &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), upd), ErrStatusConflict)
}

func TestRepositoryDeleteOnlyDraftRows(t *testing.T) {
	fake := newFakeDB()
	repo := &repository{db: fake}

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.Equal(t, "DRAFT", fake.calls[0].args[1])

	fake.rowsAffected = 0
	assert.ErrorIs(t, repo.Delete(context.Background(), 5), ErrStatusConflict)
}

func TestRepositoryCreateDuplicateNumberIsConflict(t *testing.T) {
	fake := newFakeDB()
	fake.insertErr = &pgconn.PgError{Code: "23505"}
	repo := &repository{db: fake}

	_, err := repo.Create(context.Background(), &SaleOrder{OrderNo: "SO-240110-0001", Status: lifecycle.StatusDraft, OrderFields: validPayload().OrderFields}, 0)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func columnArg(t *testing.T, args []interface{}, column string) interface{} {
	t.Helper()
	for i, col := range editableColumns {
		if col == column {
			return args[i]
		}
	}
	t.Fatalf("unknown column %s", column)
	return nil
}

func TestEditableArgsKeepFullPrecision(t *testing.T) {
	order := &SaleOrder{OrderFields: validPayload().OrderFields}
	order.RightSpherical = "1.125"
	order.LensPrice = decimalOf("499.995")
	order.Subtotal = decimalOf("499.995")

	args := editableArgs(order)
	require.Len(t, args, len(editableColumns))

	lens := columnArg(t, args, "lens_price").(decimal.Decimal)
	assert.Equal(t, "499.995", lens.String())
	subtotal := columnArg(t, args, "subtotal").(decimal.Decimal)
	assert.True(t, lens.Equal(subtotal))

	sph := columnArg(t, args, "right_spherical").(decimal.NullDecimal)
	require.True(t, sph.Valid)
	assert.Equal(t, "1.125", sph.Decimal.String())
	assert.Equal(t, "1.125", string(measurement(sph)))

	assert.False(t, columnArg(t, args, "left_spherical").(decimal.NullDecimal).Valid)
	assert.Nil(t, columnArg(t, args, "assigned_person_id"))
}

package schema

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/database"
)

type fakeConnector struct {
	dialect database.Dialect
	db      *sql.DB
	err     error
}

func (f fakeConnector) Dialect() database.Dialect { return f.dialect }

func (f fakeConnector) DB(context.Context, string) (*sql.DB, error) {
	return f.db, f.err
}

func TestIntrospectorLoadsMySQLSchemaAndSkipsFailingTable(t *testing.T) {
	db, mock := newSQLMock(t)
	dialect, err := database.LookupDialect("mysql")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop"}).AddRow("orders").AddRow("broken").AddRow("customers"))
	mock.ExpectQuery(regexp.QuoteMeta("DESCRIBE `orders`")).
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "int", "NO", "PRI", nil, "auto_increment").
			AddRow("total", "decimal(10,2)", "YES", "", nil, ""))
	mock.ExpectQuery(regexp.QuoteMeta("DESCRIBE `broken`")).
		WillReturnError(errors.New("table is corrupt"))
	mock.ExpectQuery(regexp.QuoteMeta("DESCRIBE `customers`")).
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "int", "NO", "PRI", nil, "").
			AddRow("name", "varchar(255)", "YES", "", nil, ""))

	introspector := NewIntrospector(fakeConnector{dialect: dialect, db: db}, discardLogger())
	snapshot, err := introspector.Load(context.Background(), "shop")
	require.NoError(t, err)

	assert.Equal(t, []string{"customers", "orders"}, snapshot.Tables())
	orders, ok := snapshot.Table("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "total"}, orders.Columns)
	assert.Equal(t, "decimal(10,2)", orders.Types["total"])
	_, ok = snapshot.Table("broken")
	assert.False(t, ok)
	assertSQLMock(t, mock)
}

func TestIntrospectorUsesInformationSchemaForPostgres(t *testing.T) {
	db, mock := newSQLMock(t)
	dialect, err := database.LookupDialect("postgres")
	require.NoError(t, err)

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("events"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("events").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "bigint").
			AddRow("payload", "jsonb"))

	snapshot, err := NewIntrospector(fakeConnector{dialect: dialect, db: db}, discardLogger()).Load(context.Background(), "app")
	require.NoError(t, err)
	events, ok := snapshot.Table("events")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "bigint", "payload": "jsonb"}, events.Types)
	assertSQLMock(t, mock)
}

func TestIntrospectorReturnsLoadError(t *testing.T) {
	dialect, err := database.LookupDialect("mysql")
	require.NoError(t, err)

	_, err = NewIntrospector(fakeConnector{dialect: dialect, err: database.ErrDatabaseNotAllowed}, discardLogger()).
		Load(context.Background(), "secret")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "secret", loadErr.Database)
	assert.ErrorIs(t, err, database.ErrDatabaseNotAllowed)

	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES")).WillReturnError(errors.New("access denied"))
	_, err = NewIntrospector(fakeConnector{dialect: dialect, db: db}, discardLogger()).Load(context.Background(), "shop")
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "access denied")
	assertSQLMock(t, mock)
}

type countingLoader struct {
	calls   atomic.Int32
	release chan struct{}
}

func (l *countingLoader) Load(ctx context.Context, database string) (Snapshot, error) {
	l.calls.Add(1)
	<-l.release
	return NewSnapshot(map[string]Table{"t": {Columns: []string{"id"}, Types: map[string]string{"id": "int"}}})
}

func TestCoalescingLoaderSharesInflightLoad(t *testing.T) {
	inner := &countingLoader{release: make(chan struct{})}
	loader := NewCoalescingLoader(inner)

	var wg sync.WaitGroup
	results := make([]Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := loader.Load(context.Background(), "shop")
			assert.NoError(t, err)
			results[i] = snapshot
		}(i)
	}
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
	for _, snapshot := range results {
		assert.Equal(t, []string{"t"}, snapshot.Tables())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

type gatedLoader struct {
	started chan struct{}
	release chan struct{}
	loadErr atomic.Value
}

func (l *gatedLoader) Load(ctx context.Context, database string) (Snapshot, error) {
	close(l.started)
	select {
	case <-l.release:
	case <-ctx.Done():
		l.loadErr.Store(ctx.Err())
		return Snapshot{}, ctx.Err()
	}
	return NewSnapshot(map[string]Table{"orders": {Columns: []string{"id"}, Types: map[string]string{"id": "int"}}})
}

func TestCoalescingLoaderSurvivesFirstCallerCancel(t *testing.T) {
	inner := &gatedLoader{started: make(chan struct{}), release: make(chan struct{})}
	loader := NewCoalescingLoader(inner)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.Load(firstCtx, "shop")
		firstErr <- err
	}()
	<-inner.started

	type outcome struct {
		snapshot Snapshot
		err      error
	}
	second := make(chan outcome, 1)
	go func() {
		snapshot, err := loader.Load(context.Background(), "shop")
		second <- outcome{snapshot: snapshot, err: err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, []string{"orders"}, got.snapshot.Tables())
	case <-time.After(time.Second):
		t.Fatal("second caller never received the shared load")
	}
	assert.Nil(t, inner.loadErr.Load())
}

func TestCoalescingLoaderBoundsSharedLoad(t *testing.T) {
	inner := &gatedLoader{started: make(chan struct{}), release: make(chan struct{})}
	loader := NewCoalescingLoader(inner)
	loader.Timeout = 20 * time.Millisecond

	_, err := loader.Load(context.Background(), "shop")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

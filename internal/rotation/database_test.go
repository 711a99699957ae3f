package rotation_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/rotation"
)

type stubPasswords struct {
	password   string
	err        error
	gotLength  int32
	gotExclude string
}

func (s *stubPasswords) RandomPassword(_ context.Context, length int32, exclude string) (string, error) {
	s.gotLength = length
	s.gotExclude = exclude
	if s.err != nil {
		return "", s.err
	}
	return s.password, nil
}

// mockConn pairs a sqlmock connection with an opener that records what the
// strategy asked for.
type mockConn struct {
	db   *sql.DB
	mock sqlmock.Sqlmock

	driver string
	dsn    string
	opened bool
}

func newMockConn(t *testing.T) *mockConn {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return &mockConn{db: db, mock: mock}
}

func (c *mockConn) open(driverName, dsn string) (*sql.DB, error) {
	c.driver = driverName
	c.dsn = dsn
	c.opened = true
	return c.db, nil
}

func newDatabaseStrategy(passwords rotation.PasswordGenerator, conn *mockConn) *rotation.DatabaseStrategy {
	opts := []rotation.DatabaseOption{}
	if conn != nil {
		opts = append(opts, rotation.WithDBOpener(conn.open))
	}
	return rotation.NewDatabaseStrategy(passwords, logging.NewWithWriter(io.Discard, false), opts...)
}

func TestDatabaseNewPayloadReplacesOnlyPassword(t *testing.T) {
	t.Parallel()

	passwords := &stubPasswords{password: "GeneratedPass123"}
	strategy := newDatabaseStrategy(passwords, nil)

	current := rotation.ParsePayload(`{"username":"app","host":"db.example.com","port":5432,"password":"old"}`)
	pending, err := strategy.NewPayload(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, "GeneratedPass123", pending.FieldOr("password", ""))
	assert.Equal(t, "app", pending.FieldOr("username", ""))
	assert.Equal(t, "db.example.com", pending.FieldOr("host", ""))
	assert.Equal(t, "5432", pending.FieldOr("port", ""))
	assert.Equal(t, "old", current.FieldOr("password", ""), "the current payload is never mutated")

	assert.Equal(t, int32(32), passwords.gotLength)
	assert.Equal(t, `/@"'\`, passwords.gotExclude)
}

func TestDatabaseNewPayloadRequiresCurrent(t *testing.T) {
	t.Parallel()

	strategy := newDatabaseStrategy(&stubPasswords{password: "x"}, nil)
	_, err := strategy.NewPayload(context.Background(), nil)
	assert.ErrorIs(t, err, rotation.ErrNoCurrentVersion)
}

func TestDatabaseNewPayloadRejectsOpaquePayloads(t *testing.T) {
	t.Parallel()

	strategy := newDatabaseStrategy(&stubPasswords{password: "x"}, nil)
	_, err := strategy.NewPayload(context.Background(), rotation.NewOpaquePayload("not-json"))

	var validation *rotation.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestDatabaseNewPayloadPropagatesGeneratorErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("throttled")
	strategy := newDatabaseStrategy(&stubPasswords{err: boom}, nil)
	_, err := strategy.NewPayload(context.Background(), rotation.ParsePayload(`{"username":"app"}`))
	assert.ErrorIs(t, err, boom)
}

func TestDatabaseInstallPostgres(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	conn.mock.ExpectPing()
	conn.mock.ExpectExec(regexp.QuoteMeta(`ALTER USER "app_user" WITH PASSWORD 'NewPass123'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	conn.mock.ExpectClose()

	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	current := rotation.ParsePayload(`{"engine":"postgres","host":"db.example.com","port":6543,"dbname":"appdb","username":"admin","password":"adminpw"}`)
	pending := rotation.ParsePayload(`{"username":"app_user","password":"NewPass123"}`)

	require.NoError(t, strategy.Install(context.Background(), current, pending))

	assert.Equal(t, "postgres", conn.driver)
	assert.Contains(t, conn.dsn, "admin:adminpw@db.example.com:6543/appdb",
		"the change runs over the current credential, not the pending one")
	assert.Contains(t, conn.dsn, "sslmode=require")
	assert.Contains(t, conn.dsn, "connect_timeout=5")
	assert.NoError(t, conn.mock.ExpectationsWereMet())
}

func TestDatabaseInstallMySQL(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	conn.mock.ExpectPing()
	conn.mock.ExpectExec(regexp.QuoteMeta(`ALTER USER ?@'%' IDENTIFIED BY ?`)).
		WithArgs("app_user", "NewPass123").
		WillReturnResult(sqlmock.NewResult(0, 0))
	conn.mock.ExpectClose()

	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	current := rotation.ParsePayload(`{"engine":"aurora-mysql","host":"db.example.com","username":"admin","password":"adminpw"}`)
	pending := rotation.ParsePayload(`{"username":"app_user","password":"NewPass123"}`)

	require.NoError(t, strategy.Install(context.Background(), current, pending))

	assert.Equal(t, "mysql", conn.driver)
	assert.Contains(t, conn.dsn, "tcp(db.example.com:3306)", "mysql defaults to port 3306")
	assert.Contains(t, conn.dsn, "interpolateParams=true")
	assert.NoError(t, conn.mock.ExpectationsWereMet())
}

func TestDatabaseInstallValidatesPendingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pending string
	}{
		{name: "missing username", pending: `{"password":"NewPass123"}`},
		{name: "missing password", pending: `{"username":"app_user"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conn := newMockConn(t)
			strategy := newDatabaseStrategy(&stubPasswords{}, conn)
			current := rotation.ParsePayload(`{"host":"db.example.com","username":"admin","password":"adminpw"}`)

			err := strategy.Install(context.Background(), current, rotation.ParsePayload(tt.pending))

			var validation *rotation.ValidationError
			assert.ErrorAs(t, err, &validation)
			assert.False(t, conn.opened, "validation failures must not open a connection")
		})
	}
}

func TestDatabaseInstallRequiresCurrent(t *testing.T) {
	t.Parallel()

	strategy := newDatabaseStrategy(&stubPasswords{}, newMockConn(t))
	err := strategy.Install(context.Background(), nil, rotation.ParsePayload(`{"username":"u","password":"p"}`))
	assert.ErrorIs(t, err, rotation.ErrNoCurrentVersion)
}

func TestDatabaseVerifyClosesConnectionOnSuccess(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	conn.mock.ExpectPing()
	conn.mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	conn.mock.ExpectClose()

	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	pending := rotation.ParsePayload(`{"host":"db.example.com","username":"app_user","password":"NewPass123"}`)

	require.NoError(t, strategy.Verify(context.Background(), pending))
	assert.NoError(t, conn.mock.ExpectationsWereMet(), "the probe connection must be closed")
}

func TestDatabaseVerifyClosesConnectionOnProbeFailure(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	conn.mock.ExpectPing()
	conn.mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("permission denied"))
	conn.mock.ExpectClose()

	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	pending := rotation.ParsePayload(`{"host":"db.example.com","username":"app_user","password":"NewPass123"}`)

	err := strategy.Verify(context.Background(), pending)

	var validation *rotation.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.NoError(t, conn.mock.ExpectationsWereMet(), "the connection must be closed even when the probe fails")
}

func TestDatabaseVerifyFailsWhenCredentialRejected(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	conn.mock.ExpectPing().WillReturnError(errors.New("password authentication failed"))
	conn.mock.ExpectClose()

	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	pending := rotation.ParsePayload(`{"host":"db.example.com","username":"app_user","password":"wrong"}`)

	err := strategy.Verify(context.Background(), pending)

	var validation *rotation.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.NoError(t, conn.mock.ExpectationsWereMet())
}

func TestDatabaseRejectsUnsupportedEngine(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	strategy := newDatabaseStrategy(&stubPasswords{}, conn)
	pending := rotation.ParsePayload(`{"engine":"oracle","host":"db.example.com","username":"u","password":"p"}`)

	err := strategy.Verify(context.Background(), pending)

	var validation *rotation.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Error(), "oracle")
	assert.False(t, conn.opened)
}

func TestDatabaseRequiresHost(t *testing.T) {
	t.Parallel()

	conn := newMockConn(t)
	strategy := newDatabaseStrategy(&stubPasswords{}, conn)

	err := strategy.Verify(context.Background(), rotation.ParsePayload(`{"username":"u","password":"p"}`))

	var validation *rotation.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.False(t, conn.opened)
}

package rotation

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// Engines the database rotator can change passwords on. Aurora variants
// speak the same wire protocol as their upstream engine.
const (
	enginePostgres       = "postgres"
	engineAuroraPostgres = "aurora-postgresql"
	engineMySQL          = "mysql"
	engineAuroraMySQL    = "aurora-mysql"
)

const (
	dbPasswordLength = 32

	// Characters that break connection strings or shell-side quoting;
	// excluded from generated passwords.
	dbPasswordExclude = `/@"'\`

	defaultConnectTimeout = 5 * time.Second
)

// PasswordGenerator mints new database passwords.
// *secretstore.Store implements it.
type PasswordGenerator interface {
	RandomPassword(ctx context.Context, length int32, exclude string) (string, error)
}

// DatabaseStrategy rotates database credentials. The payload is the RDS
// secret convention: username, password, host, plus optional engine,
// port, and dbname fields.
type DatabaseStrategy struct {
	passwords      PasswordGenerator
	logger         *logging.Logger
	openDB         func(driverName, dsn string) (*sql.DB, error)
	connectTimeout time.Duration
}

// DatabaseOption configures a DatabaseStrategy.
type DatabaseOption func(*DatabaseStrategy)

// WithDBOpener substitutes the connection opener (for testing).
func WithDBOpener(open func(driverName, dsn string) (*sql.DB, error)) DatabaseOption {
	return func(d *DatabaseStrategy) {
		d.openDB = open
	}
}

// WithConnectTimeout overrides the database connect timeout.
func WithConnectTimeout(timeout time.Duration) DatabaseOption {
	return func(d *DatabaseStrategy) {
		d.connectTimeout = timeout
	}
}

// NewDatabaseStrategy creates the database rotation strategy.
func NewDatabaseStrategy(passwords PasswordGenerator, logger *logging.Logger, opts ...DatabaseOption) *DatabaseStrategy {
	d := &DatabaseStrategy{
		passwords:      passwords,
		logger:         logger,
		openDB:         sql.Open,
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name identifies the secret type in logs.
func (d *DatabaseStrategy) Name() string {
	return "database"
}

// NewPayload clones the current payload and replaces its password with a
// store-generated one. Database rotation cannot mint from nothing: the
// rest of the credential (host, username) must already exist.
func (d *DatabaseStrategy) NewPayload(ctx context.Context, current *Payload) (*Payload, error) {
	if current == nil {
		return nil, ErrNoCurrentVersion
	}
	if !current.Structured() {
		return nil, &ValidationError{SecretType: d.Name(), Reason: "payload must be a JSON object"}
	}

	password, err := d.passwords.RandomPassword(ctx, dbPasswordLength, dbPasswordExclude)
	if err != nil {
		return nil, err
	}

	pending := current.Clone()
	if err := pending.SetField("password", password); err != nil {
		return nil, err
	}
	return pending, nil
}

// Install changes the password on the database server. It authenticates
// with the current credential; the pending one is not live yet.
func (d *DatabaseStrategy) Install(ctx context.Context, current, pending *Payload) error {
	if current == nil {
		return ErrNoCurrentVersion
	}

	username, ok := pending.Field("username")
	if !ok || username == "" {
		return &ValidationError{SecretType: d.Name(), Reason: "pending payload has no username"}
	}
	password, ok := pending.Field("password")
	if !ok || password == "" {
		return &ValidationError{SecretType: d.Name(), Reason: "pending payload has no password"}
	}

	db, engine, err := d.connect(ctx, current)
	if err != nil {
		return fmt.Errorf("connect with current credential: %w", err)
	}
	defer db.Close()

	if err := changePassword(ctx, db, engine, username, password); err != nil {
		return fmt.Errorf("change password for user %q: %w", username, err)
	}

	d.logger.Info("database password changed for user %q", username)
	return nil
}

// Verify connects with the pending credential and probes the server.
func (d *DatabaseStrategy) Verify(ctx context.Context, pending *Payload) error {
	db, _, err := d.connect(ctx, pending)
	if err != nil {
		return &ValidationError{SecretType: d.Name(), Reason: "connection with pending credential failed", Err: err}
	}
	defer db.Close()

	var probe int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&probe); err != nil {
		return &ValidationError{SecretType: d.Name(), Reason: "probe query failed", Err: err}
	}
	if probe != 1 {
		return &ValidationError{SecretType: d.Name(), Reason: fmt.Sprintf("probe query returned %d", probe)}
	}
	return nil
}

// connect opens and pings a connection described by the payload. The ping
// forces the lazy handle to actually dial, so credential failures surface
// here instead of on the first statement.
func (d *DatabaseStrategy) connect(ctx context.Context, payload *Payload) (*sql.DB, string, error) {
	engine, driver, dsn, err := d.dataSource(payload)
	if err != nil {
		return nil, "", err
	}

	db, err := d.openDB(driver, dsn)
	if err != nil {
		return nil, "", err
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, engine, nil
}

// dataSource builds the driver name and DSN from a credential payload.
func (d *DatabaseStrategy) dataSource(payload *Payload) (engine, driver, dsn string, err error) {
	if payload == nil || !payload.Structured() {
		return "", "", "", &ValidationError{SecretType: d.Name(), Reason: "payload must be a JSON object"}
	}

	host, ok := payload.Field("host")
	if !ok || host == "" {
		return "", "", "", &ValidationError{SecretType: d.Name(), Reason: "payload has no host"}
	}
	username, _ := payload.Field("username")
	password, _ := payload.Field("password")
	engine = payload.FieldOr("engine", enginePostgres)

	timeoutSeconds := int(d.connectTimeout.Seconds())
	if timeoutSeconds < 1 {
		timeoutSeconds = 1
	}

	switch engine {
	case enginePostgres, engineAuroraPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(username, password),
			Host:   fmt.Sprintf("%s:%s", host, payload.FieldOr("port", "5432")),
			Path:   "/" + payload.FieldOr("dbname", "postgres"),
		}
		q := url.Values{}
		q.Set("sslmode", "require")
		q.Set("connect_timeout", fmt.Sprintf("%d", timeoutSeconds))
		u.RawQuery = q.Encode()
		return engine, "postgres", u.String(), nil

	case engineMySQL, engineAuroraMySQL:
		cfg := mysql.NewConfig()
		cfg.User = username
		cfg.Passwd = password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%s", host, payload.FieldOr("port", "3306"))
		cfg.DBName = payload.FieldOr("dbname", "")
		cfg.Timeout = d.connectTimeout
		// mysql cannot parameterize ALTER USER server-side; client-side
		// interpolation quotes the values instead.
		cfg.InterpolateParams = true
		return engine, "mysql", cfg.FormatDSN(), nil

	default:
		return "", "", "", &ValidationError{SecretType: d.Name(), Reason: fmt.Sprintf("unsupported engine %q", engine)}
	}
}

// changePassword issues the engine's password-change statement. Neither
// engine accepts server-side parameters for it, so values are quoted into
// the statement: pq's quoting helpers for postgres, the driver's
// client-side interpolation for mysql. The username comes from the secret
// payload; whoever writes the secret controls it.
func changePassword(ctx context.Context, db *sql.DB, engine, username, password string) error {
	switch engine {
	case enginePostgres, engineAuroraPostgres:
		stmt := fmt.Sprintf("ALTER USER %s WITH PASSWORD %s",
			pq.QuoteIdentifier(username), pq.QuoteLiteral(password))
		_, err := db.ExecContext(ctx, stmt)
		return err

	case engineMySQL, engineAuroraMySQL:
		_, err := db.ExecContext(ctx, "ALTER USER ?@'%' IDENTIFIED BY ?", username, password)
		return err

	default:
		return fmt.Errorf("unsupported engine %q", engine)
	}
}

var _ Strategy = (*DatabaseStrategy)(nil)

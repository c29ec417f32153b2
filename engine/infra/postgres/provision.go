package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finnews/finnews/pkg/logger"
)

// Environment variables consulted by OverridesFromEnv. They name an
// administrative connection to try before the built-in guesses.
const (
	EnvSuperuser = "FINNEWS_DB_SUPERUSER"
	EnvSuperpass = "FINNEWS_DB_SUPERPASS"
	EnvSuperdb   = "FINNEWS_DB_SUPERDB"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ProvisionError reports an unrecoverable auto-provisioning failure.
// Callers are expected to abort startup on it.
type ProvisionError struct {
	Msg   string
	Cause error
}

func (e *ProvisionError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *ProvisionError) Unwrap() error { return e.Cause }

// Overrides names an administrative connection to try ahead of the
// built-in candidates. A nil Password means "not set"; a pointer to the
// empty string is a meaningful override (trust-auth servers accept it).
type Overrides struct {
	User     string
	Password *string
	Database string
}

// OverridesFromEnv reads the FINNEWS_DB_SUPER* variables once. The password
// is looked up rather than read so that set-but-empty stays distinct from
// unset. Keeping this separate from Provision keeps the routine free of
// ambient process state.
func OverridesFromEnv() Overrides {
	o := Overrides{
		User:     os.Getenv(EnvSuperuser),
		Database: os.Getenv(EnvSuperdb),
	}
	if v, ok := os.LookupEnv(EnvSuperpass); ok {
		o.Password = &v
	}
	return o
}

// adminConn is the slice of *pgx.Conn the provisioner needs. pgxmock's
// connection interface satisfies it as well.
type adminConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// connectParams describes one administrative connection attempt.
// Password follows the Overrides convention: nil means trust auth.
type connectParams struct {
	User     string
	Password *string
	Host     string
	Port     uint16
	Database string
}

type connectFunc func(ctx context.Context, p connectParams) (adminConn, error)

// Provisioner idempotently creates the login role and database named by a
// connection URL, reaching the server through a cascade of administrative
// credential guesses. Best effort, for developer machines.
type Provisioner struct {
	overrides Overrides
	connect   connectFunc
}

func NewProvisioner(overrides Overrides) *Provisioner {
	return &Provisioner{overrides: overrides, connect: pgxConnect}
}

// Provision ensures that the role/database described by databaseURL exist.
// It is a no-op when both already exist. The routine owns a single
// administrative connection for its duration and closes it on every path.
func (p *Provisioner) Provision(ctx context.Context, databaseURL string) error {
	info, err := parseConnInfo(databaseURL)
	if err != nil {
		return &ProvisionError{Msg: "invalid database url", Cause: err}
	}
	if info.Driver != "postgresql" && info.Driver != "postgres" {
		return &ProvisionError{Msg: "automatic provisioning is only available for PostgreSQL URLs"}
	}
	role := info.User
	if role == "" {
		return &ProvisionError{Msg: "database url must include a username for auto-provisioning"}
	}
	conn, err := p.adminConnect(ctx, info)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			log.Debug("Closing provisioning connection failed", "error", cerr)
		}
	}()
	roleIdent, err := ensureIdentifier(role, "role")
	if err != nil {
		return err
	}
	dbIdent, err := ensureIdentifier(info.Database, "database")
	if err != nil {
		return err
	}
	if err := ensureRole(ctx, conn, roleIdent, info.Password); err != nil {
		return err
	}
	return ensureDatabase(ctx, conn, dbIdent, roleIdent)
}

// adminConnect walks the candidate cascade in priority order and returns the
// first connection that succeeds. Soft failures move to the next candidate;
// anything else aborts as-is.
func (p *Provisioner) adminConnect(ctx context.Context, info *ConnInfo) (adminConn, error) {
	log := logger.FromContext(ctx)
	var lastErr error
	for _, attempt := range p.buildAttempts(info) {
		log.Info("Auto-provision: trying connect",
			"user", attempt.User,
			"host", attempt.Host,
			"port", attempt.Port,
			"database", attempt.Database,
		)
		conn, err := p.connect(ctx, attempt)
		if err == nil {
			return conn, nil
		}
		if !isSoftConnectError(err) {
			return nil, err
		}
		log.Debug("Auto-provision: candidate failed",
			"user", attempt.User,
			"database", attempt.Database,
			"error", err,
		)
		lastErr = err
	}
	return nil, &ProvisionError{
		Msg:   fmt.Sprintf("failed to connect with any provisioning user on %s:%d", info.Host, info.Port),
		Cause: lastErr,
	}
}

// buildAttempts flattens the user x password x database candidate product
// in priority order: env overrides first, then well-known fallbacks, then
// values derived from the target descriptor.
func (p *Provisioner) buildAttempts(info *ConnInfo) []connectParams {
	users := newCandidateSet(func(s string) string { return s })
	if p.overrides.User != "" {
		users.add(p.overrides.User)
	}
	users.add("postgres", info.User, "news")

	passwords := newCandidateSet(passwordKey)
	if p.overrides.Password != nil {
		passwords.add(p.overrides.Password)
	}
	urlPassword := info.Password
	passwords.add(&urlPassword, nil)

	databases := newCandidateSet(func(s string) string { return s })
	if p.overrides.Database != "" {
		databases.add(p.overrides.Database)
	}
	// Connect to a known always-present database first if possible.
	databases.add("postgres", info.Database)

	attempts := make([]connectParams, 0, len(users.items)*len(passwords.items)*len(databases.items))
	for _, user := range users.items {
		for _, password := range passwords.items {
			for _, database := range databases.items {
				attempts = append(attempts, connectParams{
					User:     user,
					Password: password,
					Host:     info.Host,
					Port:     info.Port,
					Database: database,
				})
			}
		}
	}
	return attempts
}

// candidateSet accumulates values in priority order, dropping duplicates by
// key while keeping first-seen position.
type candidateSet[T any] struct {
	key   func(T) string
	seen  map[string]struct{}
	items []T
}

func newCandidateSet[T any](key func(T) string) *candidateSet[T] {
	return &candidateSet[T]{key: key, seen: make(map[string]struct{})}
}

func (s *candidateSet[T]) add(values ...T) {
	for _, v := range values {
		k := s.key(v)
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.items = append(s.items, v)
	}
}

// passwordKey keeps a nil password (trust auth) distinct from the empty
// string; some server auth configurations accept one but not the other.
func passwordKey(p *string) string {
	if p == nil {
		return "trust"
	}
	return "password\x00" + *p
}

// ensureRole creates the login role unless it already exists. The password
// clause is attached only when the descriptor carried a non-empty password.
func ensureRole(ctx context.Context, conn adminConn, role, password string) error {
	exists, err := rowExists(ctx, conn, "SELECT 1 FROM pg_roles WHERE rolname=$1", role)
	if err != nil {
		return &ProvisionError{Msg: fmt.Sprintf("check role %s", role), Cause: err}
	}
	if exists {
		return nil
	}
	ddl := "CREATE ROLE " + role + " WITH LOGIN"
	if password != "" {
		ddl += " PASSWORD '" + escapeLiteral(password) + "'"
	}
	if _, err := conn.Exec(ctx, ddl); err != nil {
		if isDuplicateObjectError(err) {
			logger.FromContext(ctx).Debug("Role created concurrently; continuing", "role", role)
			return nil
		}
		return &ProvisionError{Msg: fmt.Sprintf("create role %s", role), Cause: err}
	}
	logger.FromContext(ctx).Info("Created role", "role", role)
	return nil
}

// ensureDatabase creates the database owned by role unless it exists.
func ensureDatabase(ctx context.Context, conn adminConn, database, role string) error {
	exists, err := rowExists(ctx, conn, "SELECT 1 FROM pg_database WHERE datname=$1", database)
	if err != nil {
		return &ProvisionError{Msg: fmt.Sprintf("check database %s", database), Cause: err}
	}
	if exists {
		return nil
	}
	ddl := "CREATE DATABASE " + database + " OWNER " + role
	if _, err := conn.Exec(ctx, ddl); err != nil {
		if isDuplicateObjectError(err) {
			logger.FromContext(ctx).Debug("Database created concurrently; continuing", "database", database)
			return nil
		}
		return &ProvisionError{Msg: fmt.Sprintf("create database %s", database), Cause: err}
	}
	logger.FromContext(ctx).Info("Created database", "database", database, "owner", role)
	return nil
}

func rowExists(ctx context.Context, conn adminConn, query string, args ...any) (bool, error) {
	var one int
	err := conn.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ensureIdentifier rejects names that cannot be interpolated into DDL text.
// Placeholders cannot stand in for identifiers, so this check is the sole
// injection defense on that path; it runs even for values that were already
// used as query parameters.
func ensureIdentifier(value, kind string) (string, error) {
	if !identifierRe.MatchString(value) {
		return "", &ProvisionError{Msg: fmt.Sprintf("invalid %s identifier: %q", kind, value)}
	}
	return value, nil
}

// escapeLiteral prepares a string for embedding in DDL text by doubling
// single quotes.
func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// isSoftConnectError reports whether a candidate connect failure should
// move the cascade to the next candidate. Server-reported errors (bad
// auth, missing catalog, anything else the server rejects) and OS-level
// dial failures are soft; context cancellation and unclassifiable errors
// abort the cascade.
func isSoftConnectError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isDuplicateObjectError matches the lost half of a create race: another
// actor created the role/database between our existence check and CREATE.
func isDuplicateObjectError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.DuplicateObject || pgErr.Code == pgerrcode.DuplicateDatabase
}

// pgxConnect opens a one-shot connection outside any pool.
func pgxConnect(ctx context.Context, p connectParams) (adminConn, error) {
	cfg, err := pgx.ParseConfig("")
	if err != nil {
		return nil, err
	}
	cfg.Host = p.Host
	cfg.Port = p.Port
	cfg.User = p.User
	cfg.Database = p.Database
	cfg.Password = ""
	if p.Password != nil {
		cfg.Password = *p.Password
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

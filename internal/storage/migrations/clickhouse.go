package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	chstore "pumpfun-engine/internal/storage/clickhouse"
)

// TickStoreOptions configures PrepareTickStore.
type TickStoreOptions struct {
	Logger *zerolog.Logger
}

// PrepareTickStore creates the price-tick database named in dsn when missing,
// applies the embedded ClickHouse schema and returns a connection bound to
// that database.
func PrepareTickStore(ctx context.Context, dsn string, opts TickStoreOptions) (*chstore.Conn, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	db, err := tickDatabase(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureTickDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect tick store %s: %w", db, err)
	}
	if err := applyTickSchema(ctx, conn, ClickhouseFS, logger.With().Str("database", db).Logger()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// execer is the part of a ClickHouse connection the schema needs.
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

func ensureTickDatabase(ctx context.Context, dsn, db string) error {
	server, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse server: %w", err)
	}
	defer server.Close()

	if err := server.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db); err != nil {
		return fmt.Errorf("create tick database %s: %w", db, err)
	}
	return nil
}

// applyTickSchema runs every .sql file under clickhouse/ in fsys, one
// statement per Exec.
func applyTickSchema(ctx context.Context, conn execer, fsys fs.FS, logger zerolog.Logger) error {
	files, err := sqlFiles(fsys, "clickhouse")
	if err != nil {
		return fmt.Errorf("list tick schema: %w", err)
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, path.Join("clickhouse", name))
		if err != nil {
			return fmt.Errorf("read tick schema %s: %w", name, err)
		}
		stmts, err := schemaStatements(string(data))
		if err != nil {
			return fmt.Errorf("tick schema %s: %w", name, err)
		}
		for i, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("tick schema %s statement %d: %w", name, i+1, err)
			}
		}
		logger.Debug().Str("file", name).Int("statements", len(stmts)).Msg("tick schema applied")
	}
	return nil
}

// schemaStatements splits a schema file on semicolons outside quoted
// literals and drops -- line comments. '' inside a literal is an escaped
// quote.
func schemaStatements(sql string) ([]string, error) {
	var (
		stmts  []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quoted:
			cur.WriteByte(c)
			if c != '\'' {
				continue
			}
			if i+1 < len(sql) && sql[i+1] == '\'' {
				cur.WriteByte('\'')
				i++
				continue
			}
			quoted = false
		case c == '\'':
			quoted = true
			cur.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if quoted {
		return nil, errors.New("unterminated string literal")
	}
	flush()
	return stmts, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tickDatabase returns the database named in the dsn path. The name is
// spliced into CREATE DATABASE, so only plain identifiers are accepted.
func tickDatabase(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	switch {
	case db == "":
		return "", errors.New("clickhouse dsn names no tick database")
	case !identifier.MatchString(db):
		return "", fmt.Errorf("tick database %q is not a plain identifier", db)
	}
	return db, nil
}

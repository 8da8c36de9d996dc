/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleetradar/pkg/logger"
)

const migrationsTable = "fleetradar_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one embedded .up.sql file.
type migration struct {
	version string
	name    string
}

func listMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("cnpg migrations: read embedded migrations: %w", err)
	}

	out := make([]migration, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		version, _, _ := strings.Cut(name, "_")
		out = append(out, migration{version: version, name: name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })

	return out, nil
}

// RunMigrations applies every embedded migration that is not yet recorded. Each file
// runs in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("cnpg migrations: create tracking table: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT version FROM `+migrationsTable)
	if err != nil {
		return fmt.Errorf("cnpg migrations: list applied versions: %w", err)
	}

	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("cnpg migrations: scan applied versions: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}

	migrations, err := listMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.version]; ok {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + m.name)
		if err != nil {
			return fmt.Errorf("cnpg migrations: read %s: %w", m.name, err)
		}

		log.Info().Str("migration", m.name).Msg("Applying CNPG migration")

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for idx, stmt := range splitStatements(string(content)) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("statement %d: %w", idx+1, err)
				}
			}

			_, err := tx.Exec(ctx, `INSERT INTO `+migrationsTable+` (version) VALUES ($1)`, m.version)

			return err
		})
		if err != nil {
			return fmt.Errorf("cnpg migrations: %s: %w", m.name, err)
		}
	}

	return nil
}

// splitStatements cuts a script at top-level semicolons. Comments are dropped; quoted
// strings, identifiers and dollar-quoted bodies are kept intact.
func splitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}

		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		rest := script[i:]

		switch {
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				i = len(script)

				continue
			}

			i += end
			current.WriteByte('\n')
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				i = len(script)

				continue
			}

			i += end + 3
		case rest[0] == '\'' || rest[0] == '"':
			n := quotedLen(rest, rest[0])
			current.WriteString(rest[:n])
			i += n - 1
		case rest[0] == '$':
			n := dollarQuotedLen(rest)
			current.WriteString(rest[:n])
			i += n - 1
		case rest[0] == ';':
			flush()
		default:
			current.WriteByte(rest[0])
		}
	}

	flush()

	return out
}

// quotedLen returns the length of the quoted token at the start of s. Doubled quotes
// are escapes.
func quotedLen(s string, quote byte) int {
	for i := 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}

		if i+1 < len(s) && s[i+1] == quote {
			i++

			continue
		}

		return i + 1
	}

	return len(s)
}

// dollarQuotedLen returns the length of a $tag$...$tag$ body at the start of s, or 1
// when s does not open one.
func dollarQuotedLen(s string) int {
	end := strings.IndexByte(s[1:], '$')
	if end < 0 {
		return 1
	}

	tag := s[:end+2]
	for _, r := range tag[1 : len(tag)-1] {
		if r != '_' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
			return 1
		}
	}

	closing := strings.Index(s[len(tag):], tag)
	if closing < 0 {
		return len(s)
	}

	return len(tag) + closing + len(tag)
}

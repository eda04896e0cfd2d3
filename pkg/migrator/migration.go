// Package migrator loads versioned SQL migration files and tracks their
// application state in the target database.
//
// Migration files follow the NNN_description.up.sql / NNN_description.down.sql
// convention: the leading version must be unique across the directory, the up
// file is required, and the down file is optional. Applied versions are
// recorded in a tracking relation together with a checksum of the up script
// so that edits to already-applied files are detected before anything runs.
package migrator

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/confiture/confiture/pkg/consts"
	"github.com/confiture/confiture/pkg/parser"
	"github.com/pkg/errors"
)

// Migration is a single versioned migration loaded from disk.
//
// Example file pair:
//
//	001_create_users.up.sql
//	001_create_users.down.sql
type Migration struct {
	// Version is the numeric prefix of the filename, e.g. "001". Versions
	// order migrations and must be unique within a directory.
	Version string

	// Name is the description part of the filename, e.g. "create_users".
	Name string

	// Checksum is the hex-encoded SHA256 of the up script, recorded in the
	// tracking relation when the migration is applied.
	Checksum string

	// UpSQL and DownSQL hold the raw file contents. DownSQL is empty when no
	// down file exists.
	UpSQL   string
	DownSQL string
}

// ID returns the migration's full identifier, e.g. "001_create_users".
func (m *Migration) ID() string {
	return m.Version + "_" + m.Name
}

// UpStatements splits the up script into individual statements.
func (m *Migration) UpStatements() []string {
	return parser.Split(m.UpSQL)
}

// DownStatements splits the down script into individual statements. Nil when
// the migration has no down file.
func (m *Migration) DownStatements() []string {
	if m.DownSQL == "" {
		return nil
	}

	return parser.Split(m.DownSQL)
}

// HasDown reports whether a down script exists for this migration.
func (m *Migration) HasDown() bool {
	return m.DownSQL != ""
}

// LoadMigrationDir loads every migration file pair directly under dir, sorted
// by version then name. Duplicate versions are not an error at load time;
// they are detected by Tracker.Validate before anything executes.
//
// Example:
//
//	migrations, err := migrator.LoadMigrationDir(os.DirFS("."), "db/migrations")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, m := range migrations {
//		fmt.Printf("%s: %d statements\n", m.ID(), len(m.UpStatements()))
//	}
func LoadMigrationDir(fsys fs.FS, dir string) ([]*Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read migration directory %q", dir)
	}

	byID := make(map[string]*Migration)
	var order []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		var down bool
		switch {
		case strings.HasSuffix(name, consts.UpSuffix):
			name = strings.TrimSuffix(name, consts.UpSuffix)
		case strings.HasSuffix(name, consts.DownSuffix):
			name = strings.TrimSuffix(name, consts.DownSuffix)
			down = true
		default:
			continue
		}

		version, desc, ok := strings.Cut(name, "_")
		if !ok || version == "" {
			return nil, errors.Errorf("invalid migration filename %q: want NNN_description%s", entry.Name(), consts.UpSuffix)
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read migration file %q", entry.Name())
		}

		m, seen := byID[name]
		if !seen {
			m = &Migration{Version: version, Name: desc}
			byID[name] = m
			order = append(order, name)
		}

		if down {
			m.DownSQL = string(content)
		} else {
			m.UpSQL = string(content)
		}
	}

	migrations := make([]*Migration, 0, len(order))
	for _, id := range order {
		m := byID[id]
		if m.UpSQL == "" {
			return nil, errors.Errorf("migration %s has a down file but no %s file", m.ID(), consts.UpSuffix)
		}
		m.Checksum = Checksum(m.UpSQL)
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		if migrations[i].Version != migrations[j].Version {
			return migrations[i].Version < migrations[j].Version
		}
		return migrations[i].Name < migrations[j].Name
	})

	return migrations, nil
}

// Checksum returns the hex-encoded SHA256 of a migration script.
func Checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(sum[:])
}

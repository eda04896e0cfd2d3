package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)
)

const (
	// ConfigFile is the name of the project configuration file.
	ConfigFile = "confiture.yaml"

	// TrackingTable is the name of the relation used to record applied
	// migrations in the target database.
	TrackingTable = "confiture_migrations"

	// DefaultMigrationsDir is the default directory for migration files.
	DefaultMigrationsDir = "db/migrations"

	// DefaultSeedsDir is the default directory for seed files.
	DefaultSeedsDir = "db/seeds"

	// DefaultSchemaFile is the default schema entrypoint for the build
	// command.
	DefaultSchemaFile = "db/schema.sql"

	// UpSuffix and DownSuffix are the filename suffixes for migration
	// direction files (e.g. 001_create_users.up.sql).
	UpSuffix   = ".up.sql"
	DownSuffix = ".down.sql"
)

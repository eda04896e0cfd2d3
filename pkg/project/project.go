// Package project scaffolds and inspects confiture project directories.
package project

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/confiture/confiture/pkg/config"
	"github.com/confiture/confiture/pkg/consts"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed embed/schema.sql
	defaultSchemaSQL []byte

	//go:embed embed/confiture.yaml
	defaultConfig []byte

	image = fstest.MapFS{
		"db":                      {Mode: os.ModeDir | consts.ModeDir},
		"db/migrations":           {Mode: os.ModeDir | consts.ModeDir},
		"db/seeds":                {Mode: os.ModeDir | consts.ModeDir},
		consts.DefaultSchemaFile:  {Data: defaultSchemaSQL},
		consts.ConfigFile:         {Data: defaultConfig},
	}
)

type (
	// InitOptions contains options for project initialization.
	InitOptions struct {
		// DatabaseURL, when non-empty, is written into the generated
		// configuration as the target connection string.
		DatabaseURL string
	}

	// Project manages the on-disk layout of a confiture project.
	Project struct {
		root   string
		config *config.Config
	}
)

// New creates a Project rooted at path. The path should point to an existing
// directory that will serve as the project root.
//
// Example:
//
//	p := project.New("/path/to/my/project")
//	if err := p.Initialize(project.InitOptions{}); err != nil {
//		log.Fatal(err)
//	}
func New(path string) *Project {
	return &Project{root: path}
}

// Config returns the loaded project configuration, or nil before Initialize.
func (p *Project) Config() *config.Config {
	return p.config
}

// Initialize sets up the project directory structure and loads the
// configuration. It is idempotent: only missing files and directories are
// created, existing content is preserved.
//
// Created structure:
//   - confiture.yaml: project configuration
//   - db/schema.sql: schema entrypoint for the build command
//   - db/migrations/: versioned migration files
//   - db/seeds/: seed files
func (p *Project) Initialize(options InitOptions) error {
	if err := p.ensureDirectory(); err != nil {
		return err
	}

	for path, entry := range image {
		fullPath := filepath.Join(p.root, path)

		if _, err := os.Stat(fullPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to stat %s", fullPath)
		}

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(fullPath, entry.Mode.Perm()); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", fullPath)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), consts.ModeDir); err != nil {
			return errors.Wrapf(err, "failed to create parent directory for %s", fullPath)
		}

		if err := os.WriteFile(fullPath, entry.Data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write file %s", fullPath)
		}
	}

	configPath := filepath.Join(p.root, consts.ConfigFile)
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", consts.ConfigFile)
	}

	if options.DatabaseURL != "" {
		cfg.Postgres.URL = options.DatabaseURL

		f, err := os.Create(configPath)
		if err != nil {
			return errors.Wrapf(err, "failed to open config file for writing: %s", configPath)
		}
		defer func() { _ = f.Close() }()

		enc := yaml.NewEncoder(f)
		if err := enc.Encode(cfg); err != nil {
			return errors.Wrap(err, "failed to write updated config")
		}
		if err := enc.Close(); err != nil {
			return errors.Wrap(err, "failed to close yaml encoder")
		}
	}

	p.config = cfg

	return nil
}

func (p *Project) ensureDirectory() error {
	dir, err := os.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.root)
	}

	if !dir.IsDir() {
		return errors.Errorf("%s is not a directory", p.root)
	}

	return nil
}

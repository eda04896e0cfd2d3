// Package builder compiles an entrypoint schema file and its includes into a
// single SQL document.
package builder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Directive marks a line that pulls another SQL file into the output.
const Directive = "-- confiture:include"

// Compile recursively compiles a schema file and its includes. It processes
// include directives (lines starting with "-- confiture:include") and splices
// the referenced files' contents into the output. Include paths are resolved
// relative to the current file's directory, and a file visited twice in one
// compilation is an error.
//
// Example:
//
//	var buf bytes.Buffer
//	err := builder.Compile("db/schema.sql", &buf)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	compiledSQL := buf.String()
func Compile(path string, w io.Writer) error {
	return compile(path, w, map[string]bool{})
}

func compile(path string, w io.Writer, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", path)
	}
	if visited[abs] {
		return errors.Errorf("include cycle detected at %s", path)
	}
	visited[abs] = true

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", path)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, Directive) {
			includePath := strings.TrimSpace(strings.TrimPrefix(line, Directive))
			if includePath == "" {
				return errors.Errorf("%s: include directive without a path", path)
			}

			// Resolve the include relative to the current file's directory.
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(filepath.Dir(path), includePath)
			}

			if err := compile(includePath, w, visited); err != nil {
				return err
			}

			continue
		}

		fmt.Fprintln(w, line)
	}

	return errors.Wrapf(scanner.Err(), "failed scanning %s", path)
}

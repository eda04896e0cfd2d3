// Package cmd implements the confiture command line interface: project
// build, migrate up/down/status/validate/diff, and seed apply.
package cmd

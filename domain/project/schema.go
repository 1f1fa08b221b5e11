package project

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultSchema is the schema used when no project path is known.
	DefaultSchema = "specmem_default"

	// SchemaPrefix prefixes every derived schema name.
	SchemaPrefix = "specmem_"

	// schemaHashLength is the number of hex characters kept from the path hash.
	schemaHashLength = 12

	// EnvProjectPath names the environment variable that pins the active
	// project for a long-lived process.
	EnvProjectPath = "SPECMEM_PROJECT_PATH"

	// EnvSocketDir overrides the directory holding the sidecar Unix sockets.
	EnvSocketDir = "SPECMEM_SOCKET_DIR"
)

var schemaNamePattern = regexp.MustCompile(`^specmem_[a-z0-9_]+$`)

// SchemaName derives the database schema for a project path. The root or
// empty path maps to DefaultSchema; any other path maps to SchemaPrefix
// plus the first 12 hex characters of sha256 over the lowercased path with
// trailing slashes stripped. Deterministic: equal paths (modulo case and
// trailing slash) always share a schema.
func SchemaName(path string) string {
	normalized := strings.TrimRight(path, "/")
	if normalized == "" {
		return DefaultSchema
	}
	sum := sha256.Sum256([]byte(strings.ToLower(normalized)))
	return SchemaPrefix + hex.EncodeToString(sum[:])[:schemaHashLength]
}

// ValidSchemaName reports whether s is a schema name this package could
// have produced. DDL builders use it as a guard before interpolating a
// schema into SQL.
func ValidSchemaName(s string) bool {
	return schemaNamePattern.MatchString(s)
}

// InstanceHash returns the 12-hex-char hash of the raw project path, used
// for per-instance directories under ~/.specmem/instances. Unlike
// SchemaName it does not normalize, matching the sidecar services.
func InstanceHash(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:schemaHashLength]
}

// ActivePath resolves the active project path for the current call:
// SPECMEM_PROJECT_PATH, else the working directory, else "/". Resolution
// happens per call so one process can serve multiple projects under
// stacked overrides.
func ActivePath() string {
	if p := os.Getenv(EnvProjectPath); p != "" {
		return p
	}
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return "/"
}

// SocketDir resolves the directory holding the embedding and translate
// Unix sockets for a project: the SPECMEM_SOCKET_DIR override, else
// <project>/specmem/sockets, else ~/.specmem/instances/<hash>/sockets
// when no project path is known.
func SocketDir(projectPath string) string {
	if dir := os.Getenv(EnvSocketDir); dir != "" {
		return dir
	}
	if projectPath != "" && projectPath != "/" {
		return filepath.Join(projectPath, "specmem", "sockets")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".specmem", "instances", InstanceHash(projectPath), "sockets")
}

// EmbeddingSocketPath returns the embedding service socket for a project.
func EmbeddingSocketPath(projectPath string) string {
	return filepath.Join(SocketDir(projectPath), "embeddings.sock")
}

// TranslateSocketPath returns the translate service socket for a project.
func TranslateSocketPath(projectPath string) string {
	return filepath.Join(SocketDir(projectPath), "translate.sock")
}

// RescoreSocketPath returns the Mini-COT rescoring service socket for a
// project.
func RescoreSocketPath(projectPath string) string {
	return filepath.Join(SocketDir(projectPath), "rescore.sock")
}

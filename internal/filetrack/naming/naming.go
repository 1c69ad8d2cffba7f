// Package naming converts between managed filenames and the tuple
// (creation date, discriminant, original name) they encode.
//
// Unified scheme: YYMMDD-<discriminant>-<safe original name>, one flat
// directory. The discriminant is "<status>.<hash16>" for files written by
// the lifecycle manager; a bare status or bare hash is accepted on decode.
//
// Legacy scheme: <status>/<id>_<original name> below the legacy root.
//
// Nothing here touches the filesystem.
package naming

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
)

const (
	// DateLayout fixed six digit creation date
	DateLayout = "060102"
	// Separator between the three fields
	Separator = "-"
	// HashPrefixLen hex characters of the content hash kept in a discriminant
	HashPrefixLen = 16

	discriminantSep = "."
)

var (
	ErrInvalidName         = errors.New("naming: not a managed filename")
	ErrInvalidDiscriminant = errors.New("naming: discriminant must be non-empty and free of separators")
)

// Parts decoded form of a managed filename
type Parts struct {
	Date         time.Time
	Discriminant string
	OriginalName string
}

// SafeName replaces characters that cannot appear in a flat filename
func SafeName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", `\`, "_")
	safe := r.Replace(name)
	if safe == "" {
		return "unnamed"
	}
	return safe
}

// Encode builds YYMMDD-<discriminant>-<safe name>
func Encode(date time.Time, discriminant, originalName string) (string, error) {
	if discriminant == "" || strings.ContainsAny(discriminant, Separator+`/\ `) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDiscriminant, discriminant)
	}
	return date.Format(DateLayout) + Separator + discriminant + Separator + SafeName(originalName), nil
}

// Decode splits a managed filename. The returned date is midnight UTC.
func Decode(filename string) (Parts, error) {
	fields := strings.SplitN(filename, Separator, 3)
	if len(fields) != 3 || fields[1] == "" || fields[2] == "" || len(fields[0]) != len(DateLayout) {
		return Parts{}, fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}

	date, err := time.ParseInLocation(DateLayout, fields[0], time.UTC)
	if err != nil {
		return Parts{}, fmt.Errorf("%w: %q: %v", ErrInvalidName, filename, err)
	}

	return Parts{Date: date, Discriminant: fields[1], OriginalName: fields[2]}, nil
}

// Discriminant composes the unified discriminant for status and content hash
func Discriminant(status types.Status, hash string) string {
	if len(hash) > HashPrefixLen {
		hash = hash[:HashPrefixLen]
	}
	return string(status) + discriminantSep + hash
}

// SplitDiscriminant recovers status and hash prefix; either may be empty
func SplitDiscriminant(d string) (types.Status, string) {
	if label, hash, ok := strings.Cut(d, discriminantSep); ok {
		status, valid := types.ParseStatus(label)
		if !valid {
			return "", hash
		}
		return status, hash
	}
	if status, ok := types.ParseStatus(d); ok {
		return status, ""
	}
	return "", d
}

// FileName is Encode with the unified discriminant, dated in UTC
func FileName(createdAt time.Time, status types.Status, hash, originalName string) (string, error) {
	return Encode(createdAt.UTC(), Discriminant(status, hash), originalName)
}

// LegacyRelPath is the path of a legacy artifact relative to the legacy root
func LegacyRelPath(status types.Status, id, originalName string) string {
	return filepath.Join(string(status), id+"_"+originalName)
}

// DecodeLegacy parses "<status>/<id>_<name>"
func DecodeLegacy(rel string) (types.Status, string, string, error) {
	rel = filepath.ToSlash(rel)
	dir, base := path.Split(rel)
	status, ok := types.ParseStatus(strings.TrimSuffix(dir, "/"))
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidName, rel)
	}
	id, name, ok := strings.Cut(base, "_")
	if !ok || id == "" || name == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidName, rel)
	}
	return status, id, name, nil
}

package migration

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/naming"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	"github.com/tidwall/gjson"
)

// LegacyRegistryFile registry document name below the legacy root
const LegacyRegistryFile = "file_registry.json"

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// LegacyRecord one entry of the legacy registry
type LegacyRecord struct {
	ID           string
	Name         string
	OriginalPath string
	CurrentPath  string
	Status       types.Status
	Analysis     string
	Error        string
	Size         int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// SourcePath locates the artifact: <root>/<status>/<id>_<name> when it
// exists, else the recorded current path.
func (r LegacyRecord) SourcePath(root string, exists func(string) bool) string {
	rel := naming.LegacyRelPath(r.Status, r.ID, r.Name)
	candidate := filepath.Join(root, rel)
	if exists(candidate) || r.CurrentPath == "" {
		return candidate
	}
	return r.CurrentPath
}

// ParseLegacyRegistry reads the flat id -> record document. Unknown fields
// are ignored, null analysis/error read as empty.
func ParseLegacyRegistry(data []byte) ([]LegacyRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("legacy registry is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("legacy registry must be an object keyed by id")
	}

	var (
		records []LegacyRecord
		bad     error
	)
	doc.ForEach(func(key, value gjson.Result) bool {
		rec, err := parseLegacyRecord(key.String(), value)
		if err != nil {
			bad = err
			return false
		}
		records = append(records, rec)
		return true
	})
	if bad != nil {
		return nil, bad
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func parseLegacyRecord(key string, v gjson.Result) (LegacyRecord, error) {
	id := v.Get("id").String()
	if id == "" {
		id = key
	}

	status, ok := types.ParseStatus(v.Get("status").String())
	if !ok {
		return LegacyRecord{}, fmt.Errorf("record %s: unknown status %q", id, v.Get("status").String())
	}

	rec := LegacyRecord{
		ID:           id,
		Name:         v.Get("name").String(),
		OriginalPath: v.Get("original_path").String(),
		CurrentPath:  v.Get("current_path").String(),
		Status:       status,
		Analysis:     v.Get("analysis").String(),
		Error:        v.Get("error").String(),
		Size:         v.Get("size").Int(),
		CreatedAt:    parseLegacyTime(v.Get("created_at").String()),
		ModifiedAt:   parseLegacyTime(v.Get("modified_at").String()),
	}
	if rec.Name == "" {
		switch {
		case rec.OriginalPath != "":
			rec.Name = filepath.Base(rec.OriginalPath)
		case rec.CurrentPath != "":
			rec.Name = filepath.Base(rec.CurrentPath)
		default:
			return LegacyRecord{}, fmt.Errorf("record %s: no name or path", id)
		}
	}
	return rec, nil
}

// parseLegacyTime accepts RFC 3339 and naive ISO timestamps, the latter in
// local time. Unparseable values yield the zero time.
func parseLegacyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

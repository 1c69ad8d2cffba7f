package registry

import (
	"fmt"
)

// SchemaError the stored document cannot be used by this version
type SchemaError struct {
	Location string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("registry schema error at %s: %v", e.Location, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// upgrades[v] converts a version v document into version v+1
var upgrades = map[int]func(*Document) error{
	0: upgradeUnversioned,
}

// upgradeUnversioned accepts documents written before the version field
// existed: ids are taken from map keys when missing, and entries with an
// unknown status are rejected.
func upgradeUnversioned(doc *Document) error {
	for key, rec := range doc.Files {
		if rec == nil {
			delete(doc.Files, key)
			continue
		}
		if rec.ID == "" {
			rec.ID = key
		}
		if rec.Hash == "" {
			rec.Hash = rec.ID
		}
		if rec.ID != key {
			delete(doc.Files, key)
			doc.Files[rec.ID] = rec
		}
	}
	return nil
}

// upgrade brings doc to SchemaVersion and validates it
func upgrade(doc *Document) error {
	if doc.SchemaVersion > SchemaVersion {
		return fmt.Errorf("document version %d is newer than supported version %d", doc.SchemaVersion, SchemaVersion)
	}
	for doc.SchemaVersion < SchemaVersion {
		fn, ok := upgrades[doc.SchemaVersion]
		if !ok {
			return fmt.Errorf("no upgrade from version %d", doc.SchemaVersion)
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("upgrade from version %d: %w", doc.SchemaVersion, err)
		}
		doc.SchemaVersion++
	}
	return validate(doc)
}

func validate(doc *Document) error {
	for id, rec := range doc.Files {
		if rec == nil || rec.ID != id {
			return fmt.Errorf("record key %q does not match its id", id)
		}
		if !rec.Status.Valid() {
			return fmt.Errorf("record %s has invalid status %q", id, rec.Status)
		}
	}
	return nil
}

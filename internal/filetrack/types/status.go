package types

// Status lifecycle status of a tracked file
type Status string

const (
	// StatusPending registered, waiting for analysis
	StatusPending Status = "pending"
	// StatusInProgress analysis running
	StatusInProgress Status = "in_progress"
	// StatusCompleted analysis stored
	StatusCompleted Status = "completed"
	// StatusFailed analysis failed, error stored
	StatusFailed Status = "failed"
	// StatusArchived terminal, eligible for cleanup
	StatusArchived Status = "archived"
)

// Query-only statuses, never stored on a record.
const (
	// StatusUnanalyzed the path exists but no record matches its content
	StatusUnanalyzed Status = "unanalyzed"
	// StatusUnregistered the path or id does not exist
	StatusUnregistered Status = "unregistered"
)

// AllStatuses record statuses in lifecycle order
var AllStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusArchived,
}

// Valid reports whether s can be stored on a record
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusArchived:
		return true
	}
	return false
}

// Tracked reports whether s is a record status rather than a query sentinel
func (s Status) Tracked() bool {
	return s.Valid()
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a label into a record status
func ParseStatus(label string) (Status, bool) {
	s := Status(label)
	return s, s.Valid()
}

// FileType extension-derived document type
type FileType string

const (
	FileTypeTxt  FileType = "txt"
	FileTypePdf  FileType = "pdf"
	FileTypeDocx FileType = "docx"
	FileTypeXlsx FileType = "xlsx"
	FileTypeXls  FileType = "xls"
	FileTypeEml  FileType = "eml"
)

func (ft FileType) String() string {
	return string(ft)
}

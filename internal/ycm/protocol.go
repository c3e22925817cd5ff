package ycm

// Endpoints exposed by the completion daemon.
const (
	EndpointCompletions       = "completions"
	EndpointEventNotification = "event_notification"
	EndpointLoadExtraConf     = "load_extra_conf_file"
	EndpointHealthy           = "healthy"
)

// Event names understood by the daemon's event_notification endpoint.
const (
	EventFileReadyToParse = "FileReadyToParse"
	EventBufferVisit      = "BufferVisit"
	EventBufferUnload     = "BufferUnload"
)

// hmacHeader carries the base64 HMAC-SHA256 of the request body.
const hmacHeader = "X-Ycm-Hmac"

// FileData is one tracked buffer's snapshot as sent to the daemon.
// Snapshots are built at request time so they reflect current editor
// state, never a stale copy.
type FileData struct {
	Contents  string   `json:"contents"`
	Filetypes []string `json:"filetypes"`
}

// RequestDocument is the base request body shared by completion and
// event-notification calls. Line and column are 1-based, matching the
// daemon's convention.
type RequestDocument struct {
	LineNum   int                 `json:"line_num"`
	ColumnNum int                 `json:"column_num"`
	Filepath  string              `json:"filepath"`
	FileData  map[string]FileData `json:"file_data"`

	// EventName is set only for event_notification requests.
	EventName string `json:"event_name,omitempty"`
}

// CompletionCandidate is one completion suggestion returned by the daemon.
// Candidates are immutable values parsed from the response array in daemon
// order.
type CompletionCandidate struct {
	// InsertionText is the text to insert into the buffer.
	InsertionText string

	// DetailedInfo holds extended documentation for the candidate.
	DetailedInfo string

	// Kind classifies the candidate (e.g. "FUNCTION", "CLASS").
	Kind string

	// ExtraMenuInfo is auxiliary information shown beside the menu entry.
	ExtraMenuInfo string

	// MenuText overrides InsertionText in the menu when set.
	MenuText string
}

// Buffer is one open editor buffer.
type Buffer struct {
	// Path is the buffer's file path.
	Path string

	// Contents is the full buffer text.
	Contents string

	// Mode is the editor's major-mode name for the buffer.
	Mode string
}

// EditorState captures the editor at the moment of a request: the current
// buffer's path and 1-based cursor position, plus every eligible buffer.
type EditorState struct {
	Filepath string
	Line     int
	Column   int
	Buffers  []Buffer
}

package record

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	uuid "github.com/gofrs/uuid/v5"
)

// Session identifies one continuous capture run and the single output
// file it produces. Naming the file after the start timestamp keeps
// field recordings sortable without a database.
type Session struct {
	id        uuid.UUID
	startedAt time.Time
	path      string
}

// NewSession creates the output directory if needed and reserves a
// timestamped output path inside it.
func NewSession(outputDir string, format string) (*Session, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	startedAt := time.Now()
	name := fmt.Sprintf("%s.%s", startedAt.Format("2006-01-02_15:04:05"), format)

	return &Session{
		id:        id,
		startedAt: startedAt,
		path:      filepath.Join(outputDir, name),
	}, nil
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Path is the output file the session records into.
func (s *Session) Path() string {
	return s.path
}

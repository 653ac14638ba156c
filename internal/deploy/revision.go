package deploy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// RecordFileName is the revision record file kept inside the project path.
const RecordFileName = "LAST_REVISION"

// ErrNoRecord means no revision record exists (or it is empty), so there is
// nothing to roll back to.
var ErrNoRecord = errors.New("no revision record found")

// RevisionStore persists the pre-deploy commit hash as the sole content of
// <project>/LAST_REVISION. The record is written before the mutating sequence
// runs and is not touched again until the next deploy, so a revert can always
// undo the most recent deploy.
type RevisionStore struct {
	fs ports.FileSystem
}

// NewRevisionStore creates a revision store over the given filesystem.
func NewRevisionStore(fs ports.FileSystem) *RevisionStore {
	return &RevisionStore{fs: fs}
}

// RecordPath returns the record file location for a project.
func (s *RevisionStore) RecordPath(projectPath string) string {
	return filepath.Join(projectPath, RecordFileName)
}

// Save overwrites the record with a full commit hash.
func (s *RevisionStore) Save(projectPath, commit string) error {
	return s.fs.WriteFile(s.RecordPath(projectPath), []byte(commit+"\n"), 0644)
}

// Load reads the recorded commit. A missing or empty record yields
// ErrNoRecord.
func (s *RevisionStore) Load(projectPath string) (string, error) {
	data, err := s.fs.ReadFile(s.RecordPath(projectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoRecord
		}
		return "", err
	}
	commit := strings.TrimSpace(string(data))
	if commit == "" {
		return "", ErrNoRecord
	}
	return commit, nil
}

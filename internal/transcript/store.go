package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store locates and manages transcript JSONL files on disk.
//
// Transcripts live under root in one directory per workspace. The
// workspace path is encoded into a directory name by replacing both
// '/' and '_' with '-', e.g. /opt/workspaces/user_1/main becomes
// -opt-workspaces-user-1-main.
//
// The engine appends entries as it runs; everything else only reads.
// When a session id is superseded by a canonical one, the old id keeps
// working through a relative symlink next to the canonical file.
type Store struct {
	root string
}

var pathEncoder = strings.NewReplacer("/", "-", "_", "-")

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the transcript directory for a workspace.
func (s *Store) Dir(workspacePath string) string {
	return filepath.Join(s.root, pathEncoder.Replace(workspacePath))
}

// Path returns the transcript file path for a session.
func (s *Store) Path(workspacePath, sessionID string) string {
	return filepath.Join(s.Dir(workspacePath), sessionID+".jsonl")
}

// Exists reports whether a readable transcript exists for the session.
// Follows symlinks, so an aliased id resolves to its canonical file.
func (s *Store) Exists(workspacePath, sessionID string) bool {
	_, err := os.Stat(s.Path(workspacePath, sessionID))
	return err == nil
}

// List returns session ids that have a non-empty transcript in the
// workspace. Agent sidechain transcripts (agent-*) are skipped, and
// broken symlinks are cleaned up as they are found.
func (s *Store) List(workspacePath string) ([]string, error) {
	dir := s.Dir(workspacePath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading transcript dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(name, ".jsonl")
		if strings.HasPrefix(id, "agent-") {
			continue
		}

		// Stat follows symlinks; a failure here means the link is broken.
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			_ = os.Remove(filepath.Join(dir, name))
			continue
		}
		if info.Size() == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ModTime returns the transcript's last modification time, following
// symlinks. Used to order sessions that have no registry row.
func (s *Store) ModTime(workspacePath, sessionID string) (os.FileInfo, error) {
	return os.Stat(s.Path(workspacePath, sessionID))
}

// Link makes aliasID resolve to canonicalID's transcript via a relative
// symlink inside the workspace directory. No-op if aliasID already has
// a file or link.
func (s *Store) Link(workspacePath, aliasID, canonicalID string) error {
	path := s.Path(workspacePath, aliasID)
	if _, err := os.Lstat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating transcript dir: %w", err)
	}
	if err := os.Symlink(canonicalID+".jsonl", path); err != nil {
		return fmt.Errorf("linking transcript: %w", err)
	}
	return nil
}

// Remove deletes the transcript file or symlink for a session.
// Returns true if something was removed.
func (s *Store) Remove(workspacePath, sessionID string) (bool, error) {
	path := s.Path(workspacePath, sessionID)
	// Lstat so a broken symlink is still found and removed.
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing transcript: %w", err)
	}
	return true, nil
}

// Append marshals v and appends it as one JSONL line to the session's
// transcript, creating the directory and file as needed.
func (s *Store) Append(workspacePath, sessionID string, v any) error {
	path := s.Path(workspacePath, sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating transcript dir: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding transcript entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing transcript entry: %w", err)
	}
	return nil
}

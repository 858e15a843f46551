package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const recordFile = "run.json"

// FilePersistence stores each run as <root>/<id>/run.json
type FilePersistence struct {
	root string
}

// NewFilePersistence creates root if it doesn't exist
func NewFilePersistence(root string) (*FilePersistence, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	return &FilePersistence{root: root}, nil
}

// Save writes run to its record file
func (fp *FilePersistence) Save(run *Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := ValidateID(run.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(fp.RunDir(run.ID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tmp := fp.recordPath(run.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := os.Rename(tmp, fp.recordPath(run.ID)); err != nil {
		return fmt.Errorf("failed to replace run file: %w", err)
	}
	return nil
}

// Load reads the record of run id
func (fp *FilePersistence) Load(id string) (*Run, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fp.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// Delete removes the run directory with everything in it
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrRunNotFound
	}
	if err := os.RemoveAll(fp.RunDir(id)); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// ListAll returns IDs of directories holding a run record
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(fp.recordPath(entry.Name())); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Exists checks if a record for id is stored
func (fp *FilePersistence) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	_, err := os.Stat(fp.recordPath(id))
	return err == nil
}

// RunDir returns <root>/<id>
func (fp *FilePersistence) RunDir(id string) string {
	return filepath.Join(fp.root, id)
}

func (fp *FilePersistence) recordPath(id string) string {
	return filepath.Join(fp.RunDir(id), recordFile)
}

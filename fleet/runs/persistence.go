package runs

// Persistence stores run records
type Persistence interface {
	// Save writes a run record, replacing an older one
	Save(run *Run) error

	// Load reads the record of run id
	Load(id string) (*Run, error)

	// Delete removes the record and the run's output
	Delete(id string) error

	// ListAll returns the IDs of all stored runs
	ListAll() ([]string, error)

	// Exists checks if a record for id is stored
	Exists(id string) bool

	// RunDir returns the directory holding the output of run id
	RunDir(id string) string
}

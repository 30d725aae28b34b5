package process

// ProcessFinder defines operations for discovering processes
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their name (exact match), ordered by PID
	FindProcessByName(name string) ([]ProcessInfo, error)
}

// ProcessOpener opens a process for memory operations
type ProcessOpener func(pid ProcessID) (Process, error)

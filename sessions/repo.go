package sessions

// Repo persists the single locally cached session between process runs.
type Repo interface {
	// Load returns the stored session, or nil when nothing is stored
	Load() (*Session, error)

	// Save replaces the stored session
	Save(session *Session) error

	// Clear removes the stored session; clearing an empty repo is not an error
	Clear() error
}

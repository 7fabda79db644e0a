package port

import "github.com/mlevkov/clipdock/internal/domain"

// JobStore holds the mutable job records. Implementations must be safe for
// concurrent use; Update is the only mutation path after creation and must
// refuse writes to records already in a terminal state.
type JobStore interface {
	Put(job *domain.Job) error
	Get(id string) (*domain.Job, error)
	// Update applies fn to the stored record under the store's lock. The
	// mutation is skipped (without error) when the record is terminal, so a
	// late result can never resurrect a cancelled job.
	Update(id string, fn func(*domain.Job)) error
	Delete(id string) error
	List() []*domain.Job
}

// Package memory provides an in-process store implementing the same
// persistence ports as the SQLite backend. It backs the service tests and
// the ephemeral single-binary mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
)

// Store holds all state behind one mutex. Transactions snapshot the maps and
// restore them on error, so a failed multi-write leaves no partial state.
// While a transaction runs, non-transactional operations wait on txMu; a
// rollback restores exactly the pre-transaction state and can never erase a
// write that committed during the transaction window.
type Store struct {
	mu        sync.RWMutex
	txMu      sync.RWMutex
	workflows map[string]*entity.Workflow
	tasks     map[string]*entity.Task
	reviews   map[string][]*entity.Review
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		workflows: make(map[string]*entity.Workflow),
		tasks:     make(map[string]*entity.Task),
		reviews:   make(map[string][]*entity.Review),
	}
}

// WithTransaction runs fn with snapshot rollback on error. Transactions are
// serialized; nested calls run inside the outer snapshot.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(markTx(ctx)); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type txMarker struct{}

func markTx(ctx context.Context) context.Context {
	return context.WithValue(ctx, txMarker{}, true)
}

func inTx(ctx context.Context) bool {
	active, _ := ctx.Value(txMarker{}).(bool)
	return active
}

// begin gates an operation against in-flight transactions. Transactions hold
// the write side of txMu for their whole snapshot/restore window; everything
// else shares the read side. Calls carrying the tx marker already run under
// the write side and pass through.
func (s *Store) begin(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

type storeSnapshot struct {
	workflows map[string]*entity.Workflow
	tasks     map[string]*entity.Task
	reviews   map[string][]*entity.Review
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := storeSnapshot{
		workflows: make(map[string]*entity.Workflow, len(s.workflows)),
		tasks:     make(map[string]*entity.Task, len(s.tasks)),
		reviews:   make(map[string][]*entity.Review, len(s.reviews)),
	}
	for id, w := range s.workflows {
		snap.workflows[id] = cloneWorkflow(w)
	}
	for id, t := range s.tasks {
		snap.tasks[id] = cloneTask(t)
	}
	for id, rs := range s.reviews {
		snap.reviews[id] = cloneReviews(rs)
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = snap.workflows
	s.tasks = snap.tasks
	s.reviews = snap.reviews
}

// --- workflows ---

// Create stores a new workflow
func (s *Store) Create(ctx context.Context, w *entity.Workflow) error {
	defer s.begin(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[w.ID]; exists {
		return fmt.Errorf("%w: workflow %s already exists", entity.ErrValidation, w.ID)
	}
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// GetByID returns a copy of the stored workflow
func (s *Store) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	defer s.begin(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, entity.ErrNotFound)
	}
	return cloneWorkflow(w), nil
}

// List returns matching workflows ordered by updated_at descending
func (s *Store) List(ctx context.Context, filter port.WorkflowFilter) ([]*entity.Workflow, error) {
	defer s.begin(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.Workflow
	for _, w := range s.workflows {
		if filter.ModuleID != "" && w.ModuleID != filter.ModuleID {
			continue
		}
		if filter.OrganizationID != "" && w.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ProjectID != "" && w.ProjectID != filter.ProjectID {
			continue
		}
		if filter.CreatedBy != "" && w.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		if filter.Type != "" && w.Type != filter.Type {
			continue
		}
		result = append(result, cloneWorkflow(w))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Update applies a compare-and-swap on version
func (s *Store) Update(ctx context.Context, w *entity.Workflow, expectedVersion int64) error {
	defer s.begin(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.workflows[w.ID]
	if !ok {
		return fmt.Errorf("workflow %s: %w", w.ID, entity.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("workflow %s at version %d: %w", w.ID, expectedVersion, entity.ErrConflict)
	}

	w.Version = expectedVersion + 1
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// Delete removes a workflow
func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.begin(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return fmt.Errorf("workflow %s: %w", id, entity.ErrNotFound)
	}
	delete(s.workflows, id)
	return nil
}

// --- tasks ---

// TaskStore adapts the store to port.TaskRepository. Workflow and task
// repositories share the same underlying state, so a method-set split keeps
// the two Create/GetByID/Update/Delete families apart.
type TaskStore struct {
	*Store
}

// Tasks returns the task repository view of the store
func (s *Store) Tasks() *TaskStore {
	return &TaskStore{Store: s}
}

// Create stores a new task, rejecting a duplicate order within the workflow
func (ts *TaskStore) Create(ctx context.Context, t *entity.Task) error {
	defer ts.begin(ctx)()
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.tasks[t.ID]; exists {
		return fmt.Errorf("%w: task %s already exists", entity.ErrValidation, t.ID)
	}
	for _, other := range ts.tasks {
		if other.WorkflowID == t.WorkflowID && other.Order == t.Order {
			return fmt.Errorf("%w: order %d already taken in workflow %s", entity.ErrValidation, t.Order, t.WorkflowID)
		}
	}
	ts.tasks[t.ID] = cloneTask(t)
	return nil
}

// GetByID returns a copy of the stored task
func (ts *TaskStore) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	defer ts.begin(ctx)()
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	t, ok := ts.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	return cloneTask(t), nil
}

// ListByWorkflowID returns the workflow's tasks sorted by order ascending
func (ts *TaskStore) ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Task, error) {
	defer ts.begin(ctx)()
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var result []*entity.Task
	for _, t := range ts.tasks {
		if t.WorkflowID == workflowID {
			result = append(result, cloneTask(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result, nil
}

// MaxOrder returns the highest order value in the workflow, 0 when empty
func (ts *TaskStore) MaxOrder(ctx context.Context, workflowID string) (int, error) {
	defer ts.begin(ctx)()
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	max := 0
	for _, t := range ts.tasks {
		if t.WorkflowID == workflowID && t.Order > max {
			max = t.Order
		}
	}
	return max, nil
}

// Update replaces the stored task
func (ts *TaskStore) Update(ctx context.Context, t *entity.Task) error {
	defer ts.begin(ctx)()
	ts.mu.Lock()
	defer ts.mu.Unlock()

	stored, ok := ts.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, entity.ErrNotFound)
	}
	if t.Order != stored.Order {
		for _, other := range ts.tasks {
			if other.ID != t.ID && other.WorkflowID == t.WorkflowID && other.Order == t.Order {
				return fmt.Errorf("%w: order %d already taken in workflow %s", entity.ErrValidation, t.Order, t.WorkflowID)
			}
		}
	}
	ts.tasks[t.ID] = cloneTask(t)
	return nil
}

// Delete removes a task
func (ts *TaskStore) Delete(ctx context.Context, id string) error {
	defer ts.begin(ctx)()
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	delete(ts.tasks, id)
	return nil
}

// DeleteByWorkflowID removes every task in the workflow
func (ts *TaskStore) DeleteByWorkflowID(ctx context.Context, workflowID string) error {
	defer ts.begin(ctx)()
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for id, t := range ts.tasks {
		if t.WorkflowID == workflowID {
			delete(ts.tasks, id)
		}
	}
	return nil
}

// ListByAssignee returns every task assigned to the user across workflows
func (ts *TaskStore) ListByAssignee(ctx context.Context, userID string, filter port.TaskFilter) ([]*entity.Task, error) {
	defer ts.begin(ctx)()
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var result []*entity.Task
	for _, t := range ts.tasks {
		if t.AssignedTo != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		result = append(result, cloneTask(t))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].WorkflowID != result[j].WorkflowID {
			return result[i].WorkflowID < result[j].WorkflowID
		}
		return result[i].Order < result[j].Order
	})
	return result, nil
}

// --- reviews ---

// ReviewStore adapts the store to port.ReviewRepository
type ReviewStore struct {
	*Store
}

// Reviews returns the review repository view of the store
func (s *Store) Reviews() *ReviewStore {
	return &ReviewStore{Store: s}
}

// Create appends a review decision, one per reviewer per workflow
func (rs *ReviewStore) Create(ctx context.Context, r *entity.Review) error {
	defer rs.begin(ctx)()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, existing := range rs.reviews[r.WorkflowID] {
		if existing.ReviewerID == r.ReviewerID {
			return fmt.Errorf("%w: reviewer %s already decided on workflow %s",
				entity.ErrValidation, r.ReviewerID, r.WorkflowID)
		}
	}
	rs.reviews[r.WorkflowID] = append(rs.reviews[r.WorkflowID], cloneReview(r))
	return nil
}

// Update replaces an existing reviewer's decision
func (rs *ReviewStore) Update(ctx context.Context, r *entity.Review) error {
	defer rs.begin(ctx)()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for i, existing := range rs.reviews[r.WorkflowID] {
		if existing.ReviewerID == r.ReviewerID {
			rs.reviews[r.WorkflowID][i] = cloneReview(r)
			return nil
		}
	}
	return fmt.Errorf("review by %s on workflow %s: %w", r.ReviewerID, r.WorkflowID, entity.ErrNotFound)
}

// ListByWorkflowID returns the workflow's reviews in insertion order
func (rs *ReviewStore) ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Review, error) {
	defer rs.begin(ctx)()
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return cloneReviews(rs.reviews[workflowID]), nil
}

// --- clone helpers ---

func cloneWorkflow(w *entity.Workflow) *entity.Workflow {
	c := *w
	if w.DueDate != nil {
		d := *w.DueDate
		c.DueDate = &d
	}
	if w.CompletedDate != nil {
		d := *w.CompletedDate
		c.CompletedDate = &d
	}
	if w.RequiredReviewers != nil {
		c.RequiredReviewers = append([]string{}, w.RequiredReviewers...)
	}
	return &c
}

func cloneTask(t *entity.Task) *entity.Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		c.CompletedDate = &d
	}
	return &c
}

func cloneReview(r *entity.Review) *entity.Review {
	c := *r
	return &c
}

func cloneReviews(rs []*entity.Review) []*entity.Review {
	if rs == nil {
		return nil
	}
	out := make([]*entity.Review, len(rs))
	for i, r := range rs {
		out[i] = cloneReview(r)
	}
	return out
}

// Verify interface compliance
var (
	_ port.WorkflowRepository = (*Store)(nil)
	_ port.TaskRepository     = (*TaskStore)(nil)
	_ port.ReviewRepository   = (*ReviewStore)(nil)
	_ port.TransactionManager = (*Store)(nil)
)

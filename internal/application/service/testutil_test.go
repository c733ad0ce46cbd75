package service

import (
	"context"
	"sync"

	"github.com/clinvera/regflow/internal/application/bus"
	"github.com/clinvera/regflow/internal/domain/entity"
	"github.com/clinvera/regflow/internal/domain/event"
	"github.com/clinvera/regflow/internal/infrastructure/persistence/memory"
)

// nopLogger discards everything
type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// recordBus captures published events synchronously so tests can assert on
// them without sleeping
type recordBus struct {
	mu     sync.Mutex
	events []*event.Event
}

func (b *recordBus) Subscribe(eventType event.Type, handler bus.Handler) *bus.Subscription {
	return nil
}

func (b *recordBus) SubscribeWorkflow(eventType event.Type, workflowID string, handler bus.Handler) *bus.Subscription {
	return nil
}

func (b *recordBus) Unsubscribe(sub *bus.Subscription) {}

func (b *recordBus) Publish(ctx context.Context, evt *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordBus) Close() error { return nil }

func (b *recordBus) ofType(eventType event.Type) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*event.Event
	for _, evt := range b.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// env bundles the services under test over a shared in-memory store
type env struct {
	store      *memory.Store
	bus        *recordBus
	workflows  WorkflowService
	tasks      TaskService
	templates  TemplateService
	approvals  ApprovalService
	aggregator AggregatorService
}

// registryStub serves templates from a map
type registryStub struct {
	templates map[string]*entity.Template
}

func (r *registryStub) Get(id string) (*entity.Template, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return tpl, nil
}

func (r *registryStub) List() []*entity.Template {
	out := make([]*entity.Template, 0, len(r.templates))
	for _, tpl := range r.templates {
		out = append(out, tpl)
	}
	return out
}

func newEnv(templates ...*entity.Template) *env {
	store := memory.NewStore()
	rb := &recordBus{}
	locks := NewWorkflowLocks()
	logger := nopLogger{}

	registry := &registryStub{templates: make(map[string]*entity.Template)}
	for _, tpl := range templates {
		registry.templates[tpl.ID] = tpl
	}

	return &env{
		store:      store,
		bus:        rb,
		workflows:  NewWorkflowService(store, store.Tasks(), store, locks, rb, logger),
		tasks:      NewTaskService(store, store.Tasks(), locks, rb, logger),
		templates:  NewTemplateService(registry, store, store.Tasks(), store, rb, logger),
		approvals:  NewApprovalService(store, store.Reviews(), store, locks, rb, DefaultApprovalPolicy(), logger),
		aggregator: NewAggregatorService(store, store.Tasks(), logger),
	}
}

// mustCreate seeds a workflow through the service layer
func (e *env) mustCreate(ctx context.Context, in CreateWorkflowInput) *entity.Workflow {
	w, err := e.workflows.Create(ctx, in)
	if err != nil {
		panic(err)
	}
	return w
}

func basicInput(name string, wfType entity.WorkflowType) CreateWorkflowInput {
	return CreateWorkflowInput{
		Name:           name,
		Type:           wfType,
		ModuleID:       "regulatory",
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
		CreatedBy:      "user-1",
	}
}

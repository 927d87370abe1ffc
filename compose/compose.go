// Package compose turns a structure descriptor into a Resource: a dispatch
// table of operation handlers bound to one CRUD service. Which operations a
// resource carries is decided here, once, at wiring time. A disabled
// operation has no handler at all, and the soft-delete operations can only
// be enabled against a service implementing crud.SoftDeletable, so
// capability mismatches surface as configuration errors at startup instead
// of request-time failures.
package compose

import (
	"context"
	"sort"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/querylanguage"
)

// Operation identifies one logical resource operation.
type Operation string

const (
	OpList        Operation = "list"
	OpGet         Operation = "get"
	OpPaginate    Operation = "paginate"
	OpGroupedList Operation = "groupedList"
	OpCreate      Operation = "create"
	OpUpdate      Operation = "update"
	OpRemove      Operation = "remove"
	OpSoftRemove  Operation = "softRemove"
	OpRecover     Operation = "recover"
	OpHardRemove  Operation = "hardRemove"
)

// AllOperations lists every operation in a stable order.
var AllOperations = []Operation{
	OpList, OpGet, OpPaginate, OpGroupedList,
	OpCreate, OpUpdate,
	OpRemove, OpSoftRemove, OpRecover, OpHardRemove,
}

// defaultEnabled holds the operations enabled without opt-in. Destructive
// and recovery operations stay off until the descriptor asks for them.
var defaultEnabled = map[Operation]bool{
	OpList:        true,
	OpGet:         true,
	OpPaginate:    true,
	OpGroupedList: true,
	OpCreate:      true,
	OpUpdate:      true,
}

// softDeleteOps require the crud.SoftDeletable capability.
var softDeleteOps = map[Operation]bool{
	OpSoftRemove: true,
	OpRecover:    true,
	OpHardRemove: true,
}

// Request is the transport-neutral invocation envelope handlers receive.
// Which fields are read depends on the operation: ID for single-record
// operations, Query for reads, Input for writes.
type Request struct {
	ID    any
	Query *querylanguage.Query
	Input crud.Record
}

// Result is what a handler yields. Record is set for single-record
// operations, Records for list-shaped ones, PageInfo when the operation
// paginates.
type Result struct {
	Record   crud.Record
	Records  []crud.Record
	PageInfo *querylanguage.PageInfo
}

// Handler executes one operation.
type Handler func(ctx context.Context, req Request) (*Result, error)

// Middleware wraps a handler, for host-framework concerns such as
// authorization or request logging.
type Middleware func(next Handler) Handler

// OpConfig overrides one operation of a descriptor. The zero value means
// "keep the default". Enable turns an opt-in operation on, Disable turns a
// default operation off; setting both is a configuration error.
type OpConfig struct {
	Enable      bool
	Disable     bool
	Name        string
	Description string
	Wrappers    []Middleware
}

// Descriptor declares a resource: the service it binds to, the query schema
// its read operations decode with, and per-operation overrides. Built once
// at wiring time and never mutated afterward.
type Descriptor struct {
	// Service handles the operations. Required.
	Service crud.Servicer

	// Schema decodes query input for the read operations. Derived from the
	// service's entity with default shapes when nil.
	Schema *querylanguage.Schema

	// Operations holds the per-operation tri-state overrides.
	Operations map[Operation]OpConfig

	// Wrappers apply to every enabled operation, outermost first, before
	// the per-operation wrappers.
	Wrappers []Middleware
}

// OpInfo is the effective surface of one composed operation.
type OpInfo struct {
	Operation   Operation
	Name        string
	Description string
}

// Resource is a composed set of operation handlers over one service.
type Resource struct {
	service  crud.Servicer
	schema   *querylanguage.Schema
	handlers map[Operation]Handler
	info     map[Operation]OpInfo
}

// NewResource composes a resource from the descriptor.
func NewResource(d Descriptor) (*Resource, error) {
	if d.Service == nil {
		return nil, crudox.NewConfigError("resource requires a service")
	}
	schema := d.Schema
	if schema == nil {
		var err error
		if schema, err = querylanguage.NewSchema(d.Service.Entity()); err != nil {
			return nil, err
		}
	}
	for op := range d.Operations {
		if !knownOperation(op) {
			return nil, crudox.NewConfigError("unknown operation %q for entity %s", op, d.Service.Entity().Name)
		}
	}
	r := &Resource{
		service:  d.Service,
		schema:   schema,
		handlers: make(map[Operation]Handler),
		info:     make(map[Operation]OpInfo),
	}
	softService, softOK := d.Service.(crud.SoftDeletable)
	for _, op := range AllOperations {
		cfg := d.Operations[op]
		if cfg.Enable && cfg.Disable {
			return nil, crudox.NewConfigError("operation %q is both enabled and disabled", op)
		}
		enabled := defaultEnabled[op] || cfg.Enable
		if cfg.Disable {
			enabled = false
		}
		if !enabled {
			continue
		}
		if softDeleteOps[op] && !softOK {
			return nil, crudox.NewConfigError(
				"operation %q requires a soft-deletable service, but entity %s is served by a plain one",
				op, d.Service.Entity().Name)
		}
		h := r.handler(op, softService)
		for i := len(cfg.Wrappers) - 1; i >= 0; i-- {
			h = cfg.Wrappers[i](h)
		}
		for i := len(d.Wrappers) - 1; i >= 0; i-- {
			h = d.Wrappers[i](h)
		}
		name := cfg.Name
		if name == "" {
			name = string(op)
		}
		r.handlers[op] = h
		r.info[op] = OpInfo{Operation: op, Name: name, Description: cfg.Description}
	}
	return r, nil
}

// MustResource composes a resource and panics on a configuration error.
func MustResource(d Descriptor) *Resource {
	r, err := NewResource(d)
	if err != nil {
		panic(err)
	}
	return r
}

// handler builds the delegate for one operation.
func (r *Resource) handler(op Operation, soft crud.SoftDeletable) Handler {
	svc := r.service
	switch op {
	case OpList:
		return func(ctx context.Context, req Request) (*Result, error) {
			recs, err := svc.FindAll(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			return &Result{Records: recs}, nil
		}
	case OpGet:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := svc.FindOne(ctx, req.ID, true)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpPaginate:
		return func(ctx context.Context, req Request) (*Result, error) {
			recs, info, err := svc.Paginate(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			return &Result{Records: recs, PageInfo: &info}, nil
		}
	case OpGroupedList:
		return func(ctx context.Context, req Request) (*Result, error) {
			recs, info, err := svc.GroupedList(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			return &Result{Records: recs, PageInfo: &info}, nil
		}
	case OpCreate:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := svc.Create(ctx, req.Input)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpUpdate:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := svc.Update(ctx, req.ID, req.Input)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpRemove:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := svc.Remove(ctx, req.ID)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpSoftRemove:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := soft.SoftRemove(ctx, req.ID)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpRecover:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := soft.Recover(ctx, req.ID)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	case OpHardRemove:
		return func(ctx context.Context, req Request) (*Result, error) {
			rec, err := soft.HardRemove(ctx, req.ID)
			if err != nil {
				return nil, err
			}
			return &Result{Record: rec}, nil
		}
	}
	return nil
}

func knownOperation(op Operation) bool {
	for _, known := range AllOperations {
		if op == known {
			return true
		}
	}
	return false
}

// Service returns the bound service.
func (r *Resource) Service() crud.Servicer { return r.service }

// Schema returns the query schema read operations decode with.
func (r *Resource) Schema() *querylanguage.Schema { return r.schema }

// Handler returns the handler for the operation. ok is false when the
// operation is not part of the resource.
func (r *Resource) Handler(op Operation) (Handler, bool) {
	h, ok := r.handlers[op]
	return h, ok
}

// Enabled reports whether the resource carries the operation.
func (r *Resource) Enabled(op Operation) bool {
	_, ok := r.handlers[op]
	return ok
}

// Info returns the effective name and description of the operation.
func (r *Resource) Info(op Operation) (OpInfo, bool) {
	info, ok := r.info[op]
	return info, ok
}

// Operations returns the enabled operations sorted by name.
func (r *Resource) Operations() []Operation {
	ops := make([]Operation, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Invoke runs the operation, failing with an unsupported-operation error
// when the resource does not carry it.
func (r *Resource) Invoke(ctx context.Context, op Operation, req Request) (*Result, error) {
	h, ok := r.handlers[op]
	if !ok {
		return nil, crudox.NewUnsupportedOperationError(string(op), r.service.Entity().Name)
	}
	return h(ctx, req)
}

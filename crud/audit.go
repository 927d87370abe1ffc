package crud

import (
	"context"
	"log/slog"
)

// Audit actions reported by the built-in operations.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionRemove     = "remove"
	ActionSoftRemove = "softRemove"
	ActionRecover    = "recover"
	ActionHardRemove = "hardRemove"
)

// Entry is one audited mutation.
type Entry struct {
	Entity string
	Action string
	ID     any
	Before Record
	After  Record
}

// Auditor receives an entry after every completed mutation. Implementations
// must not block; slow sinks should buffer internally.
type Auditor interface {
	Audit(ctx context.Context, e Entry)
}

// AuditorFunc adapts a function to the Auditor interface.
type AuditorFunc func(ctx context.Context, e Entry)

// Audit calls f(ctx, e).
func (f AuditorFunc) Audit(ctx context.Context, e Entry) { f(ctx, e) }

// NewLogAuditor returns an auditor writing structured entries to the logger.
func NewLogAuditor(log *slog.Logger) Auditor {
	return AuditorFunc(func(ctx context.Context, e Entry) {
		log.InfoContext(ctx, "audit",
			slog.String("entity", e.Entity),
			slog.String("action", e.Action),
			slog.Any("id", e.ID),
		)
	})
}

package analysis

import (
	"context"

	"github.com/winlife/gamelytics/internal/schema"
	"github.com/winlife/gamelytics/internal/telemetry"
)

// Service ties compiler, executor and shaper together: one call per analyst
// query, read-only, no state between calls.
type Service struct {
	schemas  schema.Store
	executor Executor
	metrics  *telemetry.AnalysisMetrics
}

func NewService(schemas schema.Store, executor Executor, metrics *telemetry.AnalysisMetrics) *Service {
	return &Service{schemas: schemas, executor: executor, metrics: metrics}
}

// Run compiles, executes and shapes one query. Compilation failures surface
// as *QueryError and never reach the executor.
func (s *Service) Run(ctx context.Context, q EventAnalysisQuery) ([]map[string]any, error) {
	cq, qerr := Compile(ctx, q, s.schemas)
	if qerr != nil {
		s.metrics.Failed(ctx, qerr.Kind.String())
		return nil, qerr
	}
	rows, err := s.executor.Run(ctx, cq)
	if err != nil {
		s.metrics.Failed(ctx, ErrInternal.String())
		return nil, err
	}
	shaped, qerr := Shape(cq, rows)
	if qerr != nil {
		s.metrics.Failed(ctx, qerr.Kind.String())
		return nil, qerr
	}
	s.metrics.Compiled(ctx, q.EventName)
	return shaped, nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/dago-engine-base/internal/dispatch"
	"github.com/aescanero/dago-engine-base/pkg/engine"
)

// Job is a render request read from the work stream
type Job struct {
	ID        string         `json:"job_id"`
	Path      string         `json:"path,omitempty"`
	Engine    string         `json:"engine,omitempty"`
	Template  string         `json:"template"`
	Locals    map[string]any `json:"locals,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
	Recompile bool           `json:"recompile,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Output is published to the result stream for every rendered job
type Output struct {
	JobID     string    `json:"job_id"`
	Path      string    `json:"path,omitempty"`
	Engine    string    `json:"engine"`
	Contents  string    `json:"contents"`
	Reasoning string    `json:"reasoning"`
	PathTaken string    `json:"path_taken"`
	Timestamp time.Time `json:"timestamp"`
}

// parseJob parses a job from a stream message's values
func parseJob(values map[string]interface{}) (*Job, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var job Job
	if err := json.Unmarshal([]byte(dataStr), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	return &job, nil
}

// Processor renders jobs with the engine chosen by the dispatcher.
type Processor struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewProcessor creates a processor
func NewProcessor(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Process selects an engine for job and renders it.
func (p *Processor) Process(ctx context.Context, job *Job) (*Output, error) {
	selection, err := p.dispatcher.Select(ctx, dispatch.Request{
		Path:     job.Path,
		Engine:   job.Engine,
		Metadata: job.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("engine selection failed: %w", err)
	}

	p.logger.Debug("engine selected",
		zap.String("job_id", job.ID),
		zap.String("engine", selection.Engine),
		zap.String("path_taken", selection.PathTaken),
		zap.String("reasoning", selection.Reasoning),
	)

	file := &engine.File{Path: job.Path, Contents: []byte(job.Template)}
	opts := engine.Options{Settings: job.Settings, Recompile: job.Recompile}

	var res engine.Result
	select {
	case res = <-selection.Adapter.Render(ctx, file, job.Locals, opts):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, fmt.Errorf("render failed: %w", res.Err)
	}

	return &Output{
		JobID:     job.ID,
		Path:      job.Path,
		Engine:    selection.Engine,
		Contents:  string(res.File.Contents),
		Reasoning: selection.Reasoning,
		PathTaken: selection.PathTaken,
		Timestamp: p.now().UTC(),
	}, nil
}

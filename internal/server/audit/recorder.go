package audit

import (
	"context"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/logging"
)

// Sink receives every recorded event after it has been logged.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Recorder writes events to the structured log and then to each sink.
// Sink failures are logged and never returned to the caller.
type Recorder struct {
	logger logging.Logger
	sinks  []Sink
	now    func() time.Time
}

func NewRecorder(logger logging.Logger, sinks ...Sink) *Recorder {
	return &Recorder{
		logger: logger.With("module", "security_events"),
		sinks:  sinks,
		now:    time.Now,
	}
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.PrincipalID == "" {
		e.PrincipalID = common.UnauthenticatedPrincipal
	}
	info := RequestInfoFrom(ctx)
	if e.IP == "" {
		e.IP = info.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = info.UserAgent
	}
	if e.Resource == "" {
		e.Resource = info.Resource
	}
	if e.Time.IsZero() {
		e.Time = r.now().UTC()
	}

	args := []any{
		"event", string(e.Code),
		"principal_id", e.PrincipalID,
		"ip", e.IP,
		"user_agent", e.UserAgent,
		"resource", e.Resource,
	}
	if e.Reason != "" {
		args = append(args, "reason", e.Reason)
	}
	for k, v := range e.Fields {
		args = append(args, k, v)
	}
	r.logger.Info(ctx, "security event", args...)

	for _, s := range r.sinks {
		if err := s.Write(ctx, e); err != nil {
			r.logger.Error(ctx, "error writing security event", "event", string(e.Code), "error", err)
		}
	}
}

package kafka

import (
	"context"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Charger is the part of charge.Service the worker needs.
type Charger interface {
	Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error)
}

// Worker handles charge jobs: it charges the requested molecule and
// publishes a ChargeResult to the result topic.  Charging failures are
// reported in the result; only infrastructure failures are retried.
type Worker struct {
	charger     Charger
	results     Publisher
	resultTopic string
	logger      logging.Logger
}

func NewWorker(charger Charger, results Publisher, resultTopic string, logger logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Worker{charger: charger, results: results, resultTopic: resultTopic, logger: logger}
}

// Handle is a MessageHandler for the job topic.
func (w *Worker) Handle(ctx context.Context, msg *Message) error {
	job, err := DecodeJob(msg)
	if err != nil {
		return NonRetryable(err)
	}
	log := w.logger.With(logging.String(HeaderJobID, job.JobID))

	res := &ctypes.ChargeResult{JobID: job.JobID}
	resp, err := w.charger.Charge(ctx, &job.Request)
	switch {
	case err == nil:
		res.RunID = resp.RunID
		res.Response = resp
	case errors.IsTransient(err):
		return err
	default:
		log.Info("charge job failed",
			logging.String(logging.FieldCode, string(errors.GetCode(err))),
			logging.Err(err))
		res.Error = charge.ErrorResponse(err)
	}

	out, err := NewResultMessage(w.resultTopic, res)
	if err != nil {
		return NonRetryable(err)
	}
	if err := w.results.Publish(ctx, out); err != nil {
		return err
	}
	log.Debug("charge job done", logging.String(logging.FieldRunID, res.RunID))
	return nil
}

//Personal.AI order the ending

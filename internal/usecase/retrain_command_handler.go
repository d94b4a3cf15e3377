package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	domrepo "FinRank/internal/domain/repository"
	applogger "FinRank/pkg/logger"
)

// RetrainCommandHandler consumes admin retrain commands from Kafka.
type RetrainCommandHandler struct {
	topic   string
	r       retrainer
	timeout time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// NewRetrainCommandHandler bounds every triggered run by timeout when it is positive.
func NewRetrainCommandHandler(topic string, r retrainer, timeout time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *RetrainCommandHandler {
	return &RetrainCommandHandler{topic: topic, r: r, timeout: timeout, metrics: metrics, l: l}
}

func (h *RetrainCommandHandler) Topic() string { return h.topic }

// message schema: {"force": true, "requested_by": "ops"}
func (h *RetrainCommandHandler) Handle(ctx context.Context, b []byte) error {
	var cmd models.RetrainCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("consumer_unmarshal")
		}
		return fmt.Errorf("decode retrain command: %w", err)
	}
	if cmd.RequestedBy == "" {
		cmd.RequestedBy = "kafka"
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.r.RetrainAll(ctx, RetrainOptions{Force: cmd.Force, RequestedBy: cmd.RequestedBy})
	switch {
	case errors.Is(err, models.ErrRetrainInProgress):
		// The active run covers this request.
		h.l.Info("retrain command ignored, run in progress", applogger.String("requested_by", cmd.RequestedBy))
		return nil
	case errors.Is(err, models.ErrNoSegmentsTrained), errors.Is(err, context.DeadlineExceeded):
		// Redelivery would repeat the same full run; the next schedule picks it up.
		if h.metrics != nil {
			h.metrics.RecordError("retrain_command_failed")
		}
		h.l.Error("retrain command failed", applogger.String("requested_by", cmd.RequestedBy), applogger.Error(err))
		return nil
	case err != nil:
		return err
	}
	h.l.Info("retrain command done",
		applogger.String("run_id", report.RunID.String()),
		applogger.String("requested_by", cmd.RequestedBy),
		applogger.Int("trained", report.TrainedCount()),
	)
	return nil
}

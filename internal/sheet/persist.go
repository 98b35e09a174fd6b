package sheet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Persist appends one product's results to sink. It never retries and never
// panics; any failure is reported in the outcome.
func Persist(ctx context.Context, sink Sink, p model.Product, market, margin model.AnalysisResult, v model.Verdict) (out model.PersistOutcome) {
	now := time.Now()
	out.Timestamp = now

	defer func() {
		if r := recover(); r != nil {
			out.Status = model.PersistStatusFailed
			out.Error = fmt.Sprintf("sheet: append panicked: %v", r)
			out.Ref = ""
			zap.L().Error("sheet: append panicked", zap.Any("panic", r))
		}
	}()

	if sink == nil {
		out.Status = model.PersistStatusFailed
		out.Error = "sheet: no sink configured"
		return out
	}

	ref, err := sink.Append(ctx, BuildRow(p, market, margin, v, now))
	if err != nil {
		zap.L().Warn("sheet: append failed", zap.String("product", p.Name), zap.Error(err))
		out.Status = model.PersistStatusFailed
		out.Error = err.Error()
		return out
	}

	out.Status = model.PersistStatusSuccess
	out.Ref = ref
	return out
}

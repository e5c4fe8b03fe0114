package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chainctl/internal/outputs"
	"github.com/fyrsmithlabs/chainctl/internal/promotion"
)

// kv is one named output value. Slices keep emission order stable.
type kv struct {
	key   string
	value string
}

// emit writes named values in order.
func emit(out *outputs.Writer, pairs ...kv) error {
	for _, p := range pairs {
		if err := out.Set(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// reportErr logs a structured, severity-tagged error report and returns the
// error so the command exits non-zero. The core performs no retries; any
// retry is an external re-trigger.
func reportErr(ctx context.Context, err error) error {
	log.Error(ctx, "run failed",
		zap.String("severity", string(promotion.SeverityOf(err))),
		zap.Error(err),
	)
	return err
}

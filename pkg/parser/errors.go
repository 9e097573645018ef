package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go/v3"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// classify maps a provider call failure onto the stage error taxonomy.
func classify(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.Transient(core.StageParse, fmt.Errorf("%w: %s: %v", core.ErrParseTimeout, provider, err))
	}
	if statusCode(err) == http.StatusTooManyRequests {
		return core.Transient(core.StageParse, fmt.Errorf("%w: %s: %v", core.ErrQuotaExceeded, provider, err))
	}
	return core.Transient(core.StageParse, fmt.Errorf("%s: %w", provider, err))
}

func statusCode(err error) int {
	var oe *openaisdk.Error
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func malformed(err error) error {
	return core.Schema(core.StageParse, err)
}

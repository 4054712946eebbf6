package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the Registry to a Pushgateway under job, grouped by operation.
func Push(ctx context.Context, url, job, operation string) error {
	if job == "" {
		job = "aoi"
	}
	p := push.New(url, job).Gatherer(Registry)
	if operation != "" {
		p = p.Grouping("operation", operation)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

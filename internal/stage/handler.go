// Package stage defines the contract between the workflow manager and
// the stage handlers it drives (identify, unlock, ingest).
package stage

import (
	"context"

	"unspool/internal/queue"
)

// Handler is one step of the unlock workflow. Prepare runs before the
// item is claimed and may reset progress fields; Execute does the work;
// HealthCheck answers daemon status queries without touching items.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health is one stage's readiness answer.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a ready stage.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run and why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Component is a long-lived part of the process with an explicit
// start/stop lifecycle. Stop must be safe to call on a never-started
// or already-stopped component.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type named struct {
	Component
	name string
}

type Runtime struct {
	components []named
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, named{Component: component, name: name})
}

// Start brings components up in registration order. On failure the
// already-started prefix is stopped in reverse before returning.
func (r *Runtime) Start(ctx context.Context) error {
	for i, component := range r.components {
		if err := component.Start(ctx); err != nil {
			_ = stopAll(ctx, r.components[:i])
			return fmt.Errorf("start %s: %w", component.name, err)
		}
		log.WithField("component", component.name).Debug("started")
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return stopAll(ctx, r.components)
}

func stopAll(ctx context.Context, components []named) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", component.name, err))
			continue
		}
		log.WithField("component", component.name).Debug("stopped")
	}
	return stopErr
}

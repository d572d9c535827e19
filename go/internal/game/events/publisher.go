package events

import "context"

// Publisher delivers game events to whoever fans them out to clients
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// NopPublisher drops every event. Used when nothing is listening, e.g. in tools and tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

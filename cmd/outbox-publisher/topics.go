package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// topicPublishers opens one publisher per topic on first use and stops them
// all on shutdown so buffered messages are flushed.
type topicPublishers struct {
	factory publisherFactory

	mu   sync.Mutex
	open map[string]publisher
}

func newTopicPublishers(factory publisherFactory) *topicPublishers {
	return &topicPublishers{factory: factory, open: map[string]publisher{}}
}

// get returns nil when no publisher can be built for topic.
func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.open[topic]; ok {
		return p
	}
	p := t.factory(topic)
	if p != nil {
		t.open[topic] = p
	}
	return p
}

func (t *topicPublishers) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, p := range t.open {
		if s, ok := p.(interface{ Stop() }); ok {
			s.Stop()
		}
		delete(t.open, topic)
	}
}

// gcpPublisher adapts the Pub/Sub client so tests can swap in fakes.
type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{inner: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{inner: p.inner.Publish(ctx, msg)}
}

func (p gcpPublisher) Stop() { p.inner.Stop() }

type gcpResult struct {
	inner *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.inner == nil {
		return "", errors.New("pubsub returned no publish result")
	}
	return r.inner.Get(ctx)
}

package worker

import (
	"github.com/okian/proofkit/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets the pool's logger. Workers log through named children.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithShardBuffer sets each worker's inbox size.
func WithShardBuffer(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

// WithResultHandler registers fn to observe every processed event.
// fn runs on the worker goroutine and must not block.
func WithResultHandler(fn ResultFunc) Option {
	return func(p *Pool) {
		p.onResult = fn
	}
}

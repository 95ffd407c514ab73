package service

type collaborators struct {
	publisher Publisher
	mirror    Mirror
	metrics   Recorder
}

func newCollaborators(opts []Option) collaborators {
	c := collaborators{
		publisher: nopPublisher{},
		mirror:    nopMirror{},
		metrics:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option attaches an optional collaborator to a service.
type Option func(*collaborators)

// WithPublisher routes events to p.
func WithPublisher(p Publisher) Option {
	return func(c *collaborators) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMirror keeps m in sync with live state.
func WithMirror(m Mirror) Option {
	return func(c *collaborators) {
		if m != nil {
			c.mirror = m
		}
	}
}

// WithRecorder reports measurements to r.
func WithRecorder(r Recorder) Option {
	return func(c *collaborators) {
		if r != nil {
			c.metrics = r
		}
	}
}

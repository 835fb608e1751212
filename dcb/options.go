package dcb

// config holds Service-wide tunables. None of these are part of the DCB
// core algorithms themselves (spec §4); they are the knobs a deployment
// needs around them.
type config struct {
	maxSegment         int
	zombieReclaimBatch int
	admission          *ListenerAdmission
	logger             Logger
	router             Router
}

// Option configures a Service, in the same functional-options idiom as
// the teacher's eventloop.LoopOption.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithMaxSegment overrides MaxSegment: the cap on a single read-path
// allocation (spec §4.4).
func WithMaxSegment(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.maxSegment = n
		}
	})
}

// WithZombieReclaimBatch bounds how many zombies a single
// Service.ProcessZombies call will walk before returning, so that one
// worker's poll tick can't be starved by an unbounded zombie list. A
// value <= 0 means unbounded (walk the whole list every tick).
func WithZombieReclaimBatch(n int) Option {
	return optionFunc(func(c *config) {
		c.zombieReclaimBatch = n
	})
}

// WithAdmission attaches a [ListenerAdmission] rate limiter: Service.Accept
// consults it after the protocol has minted a new client DCB, and closes
// that client when the limiter rejects it.
func WithAdmission(a *ListenerAdmission) Option {
	return optionFunc(func(c *config) {
		c.admission = a
	})
}

// WithLogger overrides, for this Service, the logger installed by
// SetLogger (or the package default, which writes to stderr). See
// logging.go.
func WithLogger(l Logger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithRouter sets the Router consulted by the reclaimer when a session's
// router-level state must be torn down (spec §4.7 step 4, Router.CloseSession).
func WithRouter(r Router) Option {
	return optionFunc(func(c *config) {
		c.router = r
	})
}

func resolveOptions(opts []Option) *config {
	c := &config{
		maxSegment:         MaxSegment,
		zombieReclaimBatch: 0,
		logger:             currentGlobalLogger(),
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	return c
}

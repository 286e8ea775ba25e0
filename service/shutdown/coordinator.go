package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Signals are the termination signals that trigger teardown.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Deleter removes a remote subscription.
type Deleter interface {
	Delete(ctx context.Context, subscriptionID string) error
}

// Coordinator runs subscription teardown exactly once and then exits the
// process with status 0, whatever the teardown outcome.
type Coordinator struct {
	deleter        Deleter
	subscriptionID string
	logger         *slog.Logger

	timeout time.Duration
	stop    func()
	exit    func(code int)

	once sync.Once
	done chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds the delete call. Defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithStop registers a func that halts new work (typically the listener's
// context cancel) before teardown starts.
func WithStop(stop func()) Option {
	return func(c *Coordinator) { c.stop = stop }
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) { c.exit = exit }
}

// New creates a Coordinator for subscriptionID. A nil deleter skips the
// delete call, for subscriptions this process does not own.
func New(deleter Deleter, subscriptionID string, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		deleter:        deleter,
		subscriptionID: subscriptionID,
		logger:         logger,
		timeout:        10 * time.Second,
		exit:           os.Exit,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start installs the signal handler and returns. Teardown runs on the first
// of: a termination signal, or ctx ending. Signals keep being intercepted
// afterwards so a repeated Ctrl-C cannot kill the process mid-teardown.
func (c *Coordinator) Start(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, Signals...)

	go func() {
		select {
		case sig := <-sigCh:
			c.Shutdown(sig.String())
		case <-ctx.Done():
			c.Shutdown("context done")
		}
	}()
}

// Shutdown tears down the subscription and exits. Concurrent and repeated
// calls wait for the first one and never start a second teardown.
func (c *Coordinator) Shutdown(reason string) {
	c.once.Do(func() {
		c.logger.Info("shutting down",
			"reason", reason,
			"subscription_id", c.subscriptionID,
		)

		if c.stop != nil {
			c.stop()
		}

		if c.deleter != nil {
			c.teardown()
		} else {
			c.logger.Info("leaving subscription in place", "subscription_id", c.subscriptionID)
		}

		close(c.done)
		c.exit(0)
	})
}

// Done is closed once teardown has finished, just before exit is called.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("closing stream subscription", "subscription_id", c.subscriptionID)
	if err := c.deleter.Delete(ctx, c.subscriptionID); err != nil {
		c.logger.Error("failed to delete subscription",
			"subscription_id", c.subscriptionID,
			"error", err,
		)
		return
	}
	c.logger.Info("subscription closed", "subscription_id", c.subscriptionID)
}

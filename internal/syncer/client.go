// Package syncer gives each participant a near-real-time view of the
// session document without a push channel. One goroutine per joined
// session owns the latest fetched document; every mutation is an intent
// message to that goroutine, which alone performs CAS writes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"blackout/api/internal/game"
	"blackout/api/internal/store"
)

// ErrSyncExhausted is surfaced when an intent keeps losing CAS races
// past the retry budget. The caller renders it as a sync error; the
// document itself is never left inconsistent.
var ErrSyncExhausted = errors.New("sync retries exhausted")

const (
	// DefaultPollInterval balances UI responsiveness against store load.
	// Tunable; correctness never depends on it.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxRetries bounds CAS retries under sustained contention.
	DefaultMaxRetries = 5

	// maxBackoff caps the widened poll interval while the store is
	// unreachable.
	maxBackoff = 30 * time.Second
)

// Intent computes the next document as a pure function of the latest
// read. It is re-invoked against fresh state after every lost CAS race,
// never re-applied as a delta.
type Intent func(game.State) (game.State, error)

// Snapshot is the immutable view published to observers after every
// accepted poll or write.
type Snapshot struct {
	State     game.State
	Version   int64
	Connected bool
}

// Client is the session-state actor for one game code.
type Client struct {
	store      store.SessionStore
	code       string
	interval   time.Duration
	maxRetries int

	intents chan intentRequest
	subs    chan chan Snapshot
	admin   chan game.AdminCommand

	// Owned by the run goroutine.
	latest      Snapshot
	lastAdminID int64
	backoff     time.Duration
}

type intentRequest struct {
	intent Intent
	reply  chan error
}

// Options tunes a Client. Zero values take the defaults above.
type Options struct {
	PollInterval time.Duration
	MaxRetries   int
}

// New builds a Client for code. Run must be started before Apply is
// called.
func New(st store.SessionStore, code string, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Client{
		store:      st,
		code:       code,
		interval:   opts.PollInterval,
		maxRetries: opts.MaxRetries,
		intents:    make(chan intentRequest),
		subs:       make(chan chan Snapshot),
		admin:      make(chan game.AdminCommand, 8),
	}
}

// AdminCommands delivers each privileged command exactly once, keyed on
// its monotonic id, so duplicate polls never re-trigger a one-shot
// effect.
func (c *Client) AdminCommands() <-chan game.AdminCommand {
	return c.admin
}

// Subscribe registers an observer. Snapshots are delivered best-effort;
// a slow observer misses intermediate states, never sees stale ones out
// of order.
func (c *Client) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 4)
	c.subs <- ch
	return ch
}

// Apply sends an intent to the actor and waits for the outcome of its
// CAS chain.
func (c *Client) Apply(ctx context.Context, intent Intent) error {
	req := intentRequest{intent: intent, reply: make(chan error, 1)}
	select {
	case c.intents <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the actor loop. It returns when ctx is cancelled and is safe
// to restart with a fresh context; nothing about a session dies with
// its loop.
func (c *Client) Run(ctx context.Context) {
	var observers []chan Snapshot
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.poll(ctx, &observers)

	for {
		select {
		case <-ctx.Done():
			for _, ch := range observers {
				close(ch)
			}
			return
		case ch := <-c.subs:
			observers = append(observers, ch)
			if c.latest.Version > 0 {
				deliver(ch, c.latest)
			}
		case <-ticker.C:
			c.poll(ctx, &observers)
			ticker.Reset(c.nextInterval())
		case req := <-c.intents:
			req.reply <- c.apply(ctx, req.intent, &observers)
		}
	}
}

// poll fetches the current document and reconciles the local view. A
// response older than what we already hold is dropped; the document is
// only ever replaced wholesale.
func (c *Client) poll(ctx context.Context, observers *[]chan Snapshot) {
	state, version, err := c.store.Get(ctx, c.code)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			c.markDisconnected(observers)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			// Session retired underneath us; keep the last view but flag
			// the loss.
			c.markDisconnected(observers)
			return
		}
		log.Printf("syncer: poll %s: %v", c.code, err)
		return
	}

	c.backoff = 0
	if version <= c.latest.Version && c.latest.Connected {
		return
	}
	if version > c.latest.Version {
		c.dispatchAdmin(state)
	}
	c.publish(observers, Snapshot{State: state, Version: version, Connected: true})
}

// apply runs the read-compute-CAS chain for one intent, recomputing
// against fresh state after each lost race.
func (c *Client) apply(ctx context.Context, intent Intent, observers *[]chan Snapshot) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		state, version, err := c.store.Get(ctx, c.code)
		if err != nil {
			return fmt.Errorf("read before write: %w", err)
		}

		next, err := intent(state)
		if err != nil {
			return err
		}

		err = c.store.CompareAndSet(ctx, c.code, version, next)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write session %s: %w", c.code, err)
		}

		// Speculative overlay: publish the accepted document immediately
		// rather than waiting for the next poll tick.
		c.dispatchAdmin(next)
		c.publish(observers, Snapshot{State: next, Version: version + 1, Connected: true})
		return nil
	}
	return fmt.Errorf("%w after %d attempts", ErrSyncExhausted, c.maxRetries)
}

func (c *Client) publish(observers *[]chan Snapshot, snap Snapshot) {
	c.latest = snap
	for _, ch := range *observers {
		deliver(ch, snap)
	}
}

func (c *Client) markDisconnected(observers *[]chan Snapshot) {
	if c.backoff == 0 {
		c.backoff = c.interval
	} else if c.backoff < maxBackoff {
		c.backoff *= 2
	}
	if c.latest.Connected {
		log.Printf("syncer: connection lost for %s, backing off", c.code)
		snap := c.latest
		snap.Connected = false
		c.publish(observers, snap)
	}
}

// dispatchAdmin forwards a newly seen admin command once.
func (c *Client) dispatchAdmin(state game.State) {
	if state.Admin == nil || state.Admin.ID <= c.lastAdminID {
		return
	}
	c.lastAdminID = state.Admin.ID
	select {
	case c.admin <- *state.Admin:
	default:
		// Consumer asleep; the command is observable in the snapshot.
	}
}

func (c *Client) nextInterval() time.Duration {
	if c.backoff > 0 {
		return c.backoff
	}
	return c.interval
}

// deliver never blocks the actor on a slow observer: the stale snapshot
// is dropped in favour of the newer one.
func deliver(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

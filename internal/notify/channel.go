package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"
)

var (
	// ErrNotFound indicates unknown notification ID.
	ErrNotFound = errors.New("notification not found")
	// ErrNotPresented indicates a queued notification that is not at the head yet.
	ErrNotPresented = errors.New("notification is not presented")
	// ErrBlocking indicates dismissal of a notification that requires an explicit choice.
	ErrBlocking = errors.New("notification requires explicit acknowledgment")
	// ErrInvalidChoice indicates a choice the notification shape does not offer.
	ErrInvalidChoice = errors.New("invalid choice for notification")
)

const (
	outboxSize       = 256
	presenterTimeout = 10 * time.Second
)

// Presenter shows the head notification on one surface.
// Params: Present when a notification becomes head, Close when it leaves the queue.
// Returns: surface error, logged by the channel.
type Presenter interface {
	Name() string
	Present(ctx context.Context, n domain.Notification) error
	Close(ctx context.Context, n domain.Notification, ack domain.Ack) error
}

type entry struct {
	notification domain.Notification
	onClose      func(domain.Ack)
}

// Channel is a FIFO queue of notifications with one presented head.
// Params: theme, presenters, logger, metrics, and time source.
// Returns: non-blocking present/acknowledge API.
type Channel struct {
	theme      domain.Theme
	presenters []Presenter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu     sync.Mutex
	queue  []entry
	seq    uint64
	closed bool

	outbox chan func(context.Context)
	done   chan struct{}
}

// NewChannel creates queue and starts presenter delivery goroutine.
// Params: theme copied into every notification, presenters, logger, metrics, and now func.
// Returns: running channel; call Close on shutdown.
func NewChannel(theme domain.Theme, presenters []Presenter, logger *slog.Logger, m *metrics.Metrics, now func() time.Time) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if theme == "" {
		theme = domain.ThemeLight
	}
	c := &Channel{
		theme:      theme,
		presenters: presenters,
		logger:     logger,
		metrics:    m,
		now:        now,
		outbox:     make(chan func(context.Context), outboxSize),
		done:       make(chan struct{}),
	}
	go c.deliver()
	return c
}

func (c *Channel) deliver() {
	defer close(c.done)
	for job := range c.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), presenterTimeout)
		job(ctx)
		cancel()
	}
}

// Present enqueues notification in FIFO order.
// Params: notification payload and callback receiving the single acknowledgment.
// Returns: assigned notification ID.
func (c *Channel) Present(n domain.Notification, onClose func(domain.Ack)) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	n.ID = "n-" + strconv.FormatUint(c.seq, 10)
	n.CreatedAt = c.now()
	n.Options.Theme = c.theme
	if n.Options.Shape == "" {
		n.Options.Shape = domain.ShapeSingle
	}
	if n.Options.ConfirmLabel == "" {
		n.Options.ConfirmLabel = "OK"
	}

	c.queue = append(c.queue, entry{notification: n, onClose: onClose})
	c.metrics.SetNotificationsPending(len(c.queue))
	c.logger.Info("notification queued", "id", n.ID, "kind", n.Kind, "title", n.Title, "pending", len(c.queue))
	if len(c.queue) == 1 {
		c.schedulePresentLocked(n)
	}
	return n.ID
}

// Acknowledge closes head notification with an explicit control.
// Params: notification ID and confirm/cancel choice.
// Returns: ErrNotFound, ErrNotPresented, or ErrInvalidChoice without state change.
func (c *Channel) Acknowledge(id string, choice domain.Choice) error {
	c.mu.Lock()
	head, err := c.headLocked(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	switch choice {
	case domain.ChoiceConfirm:
	case domain.ChoiceCancel:
		if head.notification.Options.Shape != domain.ShapeDual {
			c.mu.Unlock()
			return ErrInvalidChoice
		}
	default:
		c.mu.Unlock()
		return ErrInvalidChoice
	}
	c.closeHeadLocked(head, choice)
	c.mu.Unlock()

	c.finish(head, choice)
	return nil
}

// Dismiss closes head notification without a control.
// Params: notification ID.
// Returns: ErrBlocking for blocking notifications, ErrNotFound, or ErrNotPresented.
func (c *Channel) Dismiss(id string) error {
	c.mu.Lock()
	head, err := c.headLocked(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if head.notification.Options.Blocking {
		c.mu.Unlock()
		return ErrBlocking
	}
	c.closeHeadLocked(head, domain.ChoiceDismiss)
	c.mu.Unlock()

	c.finish(head, domain.ChoiceDismiss)
	return nil
}

// Pending returns queued notifications, head first.
func (c *Channel) Pending() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, 0, len(c.queue))
	for _, queued := range c.queue {
		out = append(out, queued.notification)
	}
	return out
}

// Current returns presented head notification.
func (c *Channel) Current() (domain.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return domain.Notification{}, false
	}
	return c.queue[0].notification, true
}

// Close stops presenter delivery after draining queued presenter calls.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	close(c.outbox)
	c.mu.Unlock()
	<-c.done
}

func (c *Channel) headLocked(id string) (entry, error) {
	for i, queued := range c.queue {
		if queued.notification.ID != id {
			continue
		}
		if i != 0 {
			return entry{}, ErrNotPresented
		}
		return queued, nil
	}
	return entry{}, ErrNotFound
}

func (c *Channel) closeHeadLocked(head entry, choice domain.Choice) {
	c.queue[0] = entry{}
	c.queue = c.queue[1:]
	c.metrics.SetNotificationsPending(len(c.queue))
	c.metrics.NotificationClosed(string(head.notification.Kind), string(choice))
	c.logger.Info("notification closed", "id", head.notification.ID, "choice", choice, "pending", len(c.queue))

	ack := domain.Ack{NotificationID: head.notification.ID, Choice: choice}
	closing := head.notification
	c.enqueueLocked(func(ctx context.Context) {
		for _, presenter := range c.presenters {
			if err := presenter.Close(ctx, closing, ack); err != nil {
				c.logger.Warn("presenter close failed", "presenter", presenter.Name(), "id", closing.ID, "error", err)
			}
		}
	})
	if len(c.queue) > 0 {
		c.schedulePresentLocked(c.queue[0].notification)
	}
}

func (c *Channel) finish(head entry, choice domain.Choice) {
	if head.onClose != nil {
		head.onClose(domain.Ack{NotificationID: head.notification.ID, Choice: choice})
	}
}

func (c *Channel) schedulePresentLocked(n domain.Notification) {
	c.enqueueLocked(func(ctx context.Context) {
		for _, presenter := range c.presenters {
			if err := presenter.Present(ctx, n); err != nil {
				c.logger.Warn("presenter failed", "presenter", presenter.Name(), "id", n.ID, "error", err)
			}
		}
	})
}

func (c *Channel) enqueueLocked(job func(context.Context)) {
	if c.closed || len(c.presenters) == 0 {
		return
	}
	select {
	case c.outbox <- job:
	default:
		c.logger.Warn("presenter outbox full; dropping update")
	}
}

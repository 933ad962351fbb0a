package appstate

import (
	"sync"

	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/notify"
)

// StateObserver is called once per lifecycle transition.
type StateObserver func(State)

// ObserverHandle identifies a registered StateObserver.
type ObserverHandle struct {
	token notify.Token
}

// HostLifecycle delivers raw lifecycle signals ("active", "background", ...)
// from the host environment.
type HostLifecycle interface {
	AddListener(listener func(raw string)) (remove func())
}

// Coordinator owns the lock flag and fans lifecycle transitions out to
// observers.
//
// All transitions are expected to be driven from a single goroutine (the
// host's event loop). Observer callbacks run synchronously on that goroutine
// and may call back into the coordinator.
type Coordinator struct {
	keys      Credentials
	logger    *zap.Logger
	observers *notify.Registry[StateObserver]

	mu                       sync.Mutex
	locked                   bool
	mostRecentHostState      string
	authenticationInProgress bool

	host           HostLifecycle
	removeHost     func()
	detachOnce     sync.Once
	startObservers []StateObserver
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHostLifecycle subscribes the coordinator to host lifecycle signals
func WithHostLifecycle(host HostLifecycle) Option {
	return func(c *Coordinator) {
		c.host = host
	}
}

// WithStateObserver registers an observer before the Launching notification
// is sent during construction.
func WithStateObserver(observer StateObserver) Option {
	return func(c *Coordinator) {
		c.startObservers = append(c.startObservers, observer)
	}
}

// New constructs the coordinator. The application root owns the single
// instance and hands it to consumers. Construction subscribes to the host
// lifecycle and fires Launching. The application starts out locked.
func New(credentials Credentials, opts ...Option) *Coordinator {
	c := &Coordinator{
		keys:   credentials,
		logger: zap.NewNop(),
		locked: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("appstate")
	c.observers = notify.New[StateObserver]("appstate", c.logger)

	for _, observer := range c.startObservers {
		c.observers.Add(observer)
	}
	c.startObservers = nil

	if c.host != nil {
		c.removeHost = c.host.AddListener(c.HandleHostLifecycleChange)
	}

	c.didLaunch()
	return c
}

// Close detaches the coordinator from the host lifecycle. Safe to call more
// than once.
func (c *Coordinator) Close() {
	c.detachOnce.Do(func() {
		if c.removeHost != nil {
			c.removeHost()
		}
	})
}

// ReceiveApplicationStartEvent is sent once the host has finished
// bootstrapping. Without any credential the application is unlocked
// immediately.
func (c *Coordinator) ReceiveApplicationStartEvent() {
	req := c.GetAuthenticationPropsForAppState(Launching)
	if !req.Passcode && !req.Fingerprint {
		c.UnlockApplication()
	}
}

// HandleHostLifecycleChange processes one raw host lifecycle signal.
// The signal is recorded as the most recent host state after observers have
// been notified.
func (c *Coordinator) HandleHostLifecycleChange(raw string) {
	next := ParseHostState(raw)
	isResuming := next == HostActive
	isEnteringBackground := next == HostBackground

	c.logger.Debug("host state change",
		zap.String("from", c.MostRecentHostState()),
		zap.String("to", raw),
		zap.Bool("entering_background", isEnteringBackground),
		zap.Bool("resuming", isResuming),
	)

	if isEnteringBackground {
		c.didEnterBackground()
	}
	if isResuming {
		c.didResume()
	}

	c.mu.Lock()
	c.mostRecentHostState = raw
	c.mu.Unlock()
}

func (c *Coordinator) didLaunch() {
	c.notifyOfState(Launching)
}

func (c *Coordinator) didEnterBackground() {
	c.notifyOfState(Backgrounding)

	if c.ShouldLockApplication() {
		c.LockApplication()
	}
}

// Whether to challenge on resume is left to the UI via
// GetAuthenticationPropsForAppState(Resuming).
func (c *Coordinator) didResume() {
	c.notifyOfState(Resuming)
}

// MostRecentHostState returns the last raw host signal, or "" before the first
func (c *Coordinator) MostRecentHostState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mostRecentHostState
}

func (c *Coordinator) notifyOfState(state State) {
	c.logger.Debug("notifying of state", zap.Stringer("state", state))
	c.observers.Notify(func(observer StateObserver) {
		observer(state)
	})
}

// AddStateObserver registers observer for every subsequent transition
func (c *Coordinator) AddStateObserver(observer StateObserver) ObserverHandle {
	return ObserverHandle{token: c.observers.Add(observer)}
}

// RemoveStateObserver unregisters the observer identified by handle.
// Returns false if it was not registered.
func (c *Coordinator) RemoveStateObserver(handle ObserverHandle) bool {
	return c.observers.Remove(handle.token)
}

// IsLocked reports whether the application is locked
func (c *Coordinator) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// IsUnlocked reports whether the application is unlocked
func (c *Coordinator) IsUnlocked() bool {
	return !c.IsLocked()
}

// LockApplication notifies observers of Locking, then sets the lock flag.
// Observers still see the previous IsLocked value during the callback.
func (c *Coordinator) LockApplication() {
	c.notifyOfState(Locking)

	c.mu.Lock()
	c.locked = true
	c.mu.Unlock()
}

// UnlockApplication notifies observers of Unlocking, then clears the lock flag.
// Observers still see the previous IsLocked value during the callback.
func (c *Coordinator) UnlockApplication() {
	c.notifyOfState(Unlocking)

	c.mu.Lock()
	c.locked = false
	c.mu.Unlock()
}

// SetAuthenticationInProgress records whether an authentication flow is showing
func (c *Coordinator) SetAuthenticationInProgress(inProgress bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticationInProgress = inProgress
}

// IsAuthenticationInProgress reports the value set by SetAuthenticationInProgress
func (c *Coordinator) IsAuthenticationInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticationInProgress
}

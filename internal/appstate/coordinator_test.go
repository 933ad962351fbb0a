package appstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/notelock/internal/keys"
)

type fakeCredentials struct {
	passcode          bool
	passcodeTiming    keys.Timing
	fingerprint       bool
	fingerprintTiming keys.Timing
}

func (f *fakeCredentials) HasOfflinePasscode() bool       { return f.passcode }
func (f *fakeCredentials) PasscodeTiming() keys.Timing    { return f.passcodeTiming }
func (f *fakeCredentials) HasFingerprint() bool           { return f.fingerprint }
func (f *fakeCredentials) FingerprintTiming() keys.Timing { return f.fingerprintTiming }

type panickingCredentials struct{}

func (panickingCredentials) HasOfflinePasscode() bool       { panic("keychain gone") }
func (panickingCredentials) PasscodeTiming() keys.Timing    { panic("keychain gone") }
func (panickingCredentials) HasFingerprint() bool           { panic("keychain gone") }
func (panickingCredentials) FingerprintTiming() keys.Timing { panic("keychain gone") }

type fakeHost struct {
	listeners []func(string)
	removed   int
}

func (h *fakeHost) AddListener(listener func(string)) func() {
	h.listeners = append(h.listeners, listener)
	return func() {
		h.removed++
		h.listeners = nil
	}
}

func (h *fakeHost) send(raw string) {
	for _, l := range h.listeners {
		l(raw)
	}
}

// recorder captures every transition along with the lock flag observed
// inside the callback.
type recorder struct {
	c      *Coordinator
	states []State
	locked []bool
}

func (r *recorder) observe(s State) {
	r.states = append(r.states, s)
	if r.c != nil {
		r.locked = append(r.locked, r.c.IsLocked())
	}
}

func newCoordinator(t *testing.T, creds Credentials, opts ...Option) (*Coordinator, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append(opts, WithStateObserver(rec.observe))
	c := New(creds, opts...)
	rec.c = c
	return c, rec
}

func TestConstructionFiresLaunchingAndStartsLocked(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})

	assert.Equal(t, []State{Launching}, rec.states)
	assert.True(t, c.IsLocked())
	assert.False(t, c.IsUnlocked())
	assert.Equal(t, "", c.MostRecentHostState())
}

func TestStartWithoutCredentialsUnlocks(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})

	c.ReceiveApplicationStartEvent()

	assert.Equal(t, []State{Launching, Unlocking}, rec.states)
	assert.False(t, c.IsLocked())
}

func TestStartWithCredentialStaysLocked(t *testing.T) {
	tests := []struct {
		name  string
		creds *fakeCredentials
	}{
		{"passcode on quit", &fakeCredentials{passcode: true, passcodeTiming: keys.TimingOnQuit}},
		{"passcode immediately", &fakeCredentials{passcode: true, passcodeTiming: keys.TimingImmediately}},
		{"fingerprint unknown timing", &fakeCredentials{fingerprint: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCoordinator(t, tt.creds)
			c.ReceiveApplicationStartEvent()

			assert.Equal(t, []State{Launching}, rec.states)
			assert.True(t, c.IsLocked())
		})
	}
}

func TestBackgroundWithImmediatePasscodeLocks(t *testing.T) {
	host := &fakeHost{}
	c, rec := newCoordinator(t,
		&fakeCredentials{passcode: true, passcodeTiming: keys.TimingImmediately},
		WithHostLifecycle(host))

	c.UnlockApplication()
	require.False(t, c.IsLocked())
	rec.states, rec.locked = nil, nil

	host.send("background")

	assert.Equal(t, []State{Backgrounding, Locking}, rec.states)
	// Locking is delivered before the flag flips
	assert.Equal(t, []bool{false, false}, rec.locked)
	assert.True(t, c.IsLocked())
	assert.Equal(t, "background", c.MostRecentHostState())
}

func TestBackgroundWithDeferredTimingDoesNotLock(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{
		passcode:          true,
		passcodeTiming:    keys.TimingOnQuit,
		fingerprint:       true,
		fingerprintTiming: keys.TimingUnknown,
	})
	c.UnlockApplication()
	rec.states = nil

	c.HandleHostLifecycleChange("background")

	assert.Equal(t, []State{Backgrounding}, rec.states)
	assert.False(t, c.IsLocked())
}

func TestResumeOnlyNotifies(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{passcode: true, passcodeTiming: keys.TimingImmediately})
	c.UnlockApplication()
	rec.states = nil

	c.HandleHostLifecycleChange("active")

	assert.Equal(t, []State{Resuming}, rec.states)
	assert.False(t, c.IsLocked(), "resume must not lock by itself")
}

func TestUnrecognisedSignalRecordedOnly(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})
	rec.states = nil

	c.HandleHostLifecycleChange("inactive")
	c.HandleHostLifecycleChange("something-else")

	assert.Empty(t, rec.states)
	assert.Equal(t, "something-else", c.MostRecentHostState())
}

func TestObserversSeePreviousHostState(t *testing.T) {
	c, _ := newCoordinator(t, &fakeCredentials{})
	c.HandleHostLifecycleChange("inactive")

	var seen []string
	c.AddStateObserver(func(State) {
		seen = append(seen, c.MostRecentHostState())
	})

	c.HandleHostLifecycleChange("background")
	c.HandleHostLifecycleChange("active")

	assert.Equal(t, []string{"inactive", "background"}, seen)
	assert.Equal(t, "active", c.MostRecentHostState())
}

func TestNotifyThenMutate(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})
	rec.states, rec.locked = nil, nil

	c.UnlockApplication()
	c.LockApplication()

	assert.Equal(t, []State{Unlocking, Locking}, rec.states)
	assert.Equal(t, []bool{true, false}, rec.locked)
	assert.True(t, c.IsLocked())
}

func TestLockFlagOnlyChangesThroughLockTransitions(t *testing.T) {
	host := &fakeHost{}
	c, rec := newCoordinator(t,
		&fakeCredentials{passcode: true, passcodeTiming: keys.TimingImmediately},
		WithHostLifecycle(host))

	steps := []func(){
		func() { host.send("active") },
		func() { host.send("inactive") },
		func() { host.send("background") },
		func() { host.send("active") },
		c.UnlockApplication,
		func() { host.send("unknown") },
		func() { host.send("background") },
		func() { c.SetAuthenticationInProgress(true) },
		c.UnlockApplication,
	}
	for i, step := range steps {
		prev := c.IsLocked()
		before := len(rec.states)
		step()
		fired := rec.states[before:]
		switch {
		case !prev && c.IsLocked():
			assert.Contains(t, fired, Locking, "step %d", i)
		case prev && !c.IsLocked():
			assert.Contains(t, fired, Unlocking, "step %d", i)
		}
	}
	assert.False(t, c.IsLocked())
}

func TestAuthenticationPropsUnlockingNeverChallenges(t *testing.T) {
	c, _ := newCoordinator(t, &fakeCredentials{
		passcode: true, passcodeTiming: keys.TimingImmediately,
		fingerprint: true, fingerprintTiming: keys.TimingImmediately,
	})

	req := c.GetAuthenticationPropsForAppState(Unlocking)
	assert.False(t, req.Passcode)
	assert.False(t, req.Fingerprint)
	assert.False(t, req.Required())
	assert.Nil(t, req.OnAuthenticate)
}

func TestAuthenticationProps(t *testing.T) {
	both := &fakeCredentials{
		passcode: true, passcodeTiming: keys.TimingImmediately,
		fingerprint: true, fingerprintTiming: keys.TimingImmediately,
	}
	passcodeOnly := &fakeCredentials{passcode: true, passcodeTiming: keys.TimingImmediately}
	fingerprintOnly := &fakeCredentials{fingerprint: true, fingerprintTiming: keys.TimingImmediately}
	deferred := &fakeCredentials{
		passcode: true, passcodeTiming: keys.TimingOnQuit,
		fingerprint: true, fingerprintTiming: keys.TimingOnQuit,
	}

	tests := []struct {
		name            string
		creds           *fakeCredentials
		state           State
		wantPasscode    bool
		wantFingerprint bool
		wantTitle       string
	}{
		{"both resuming", both, Resuming, true, true, TitleAuthentication},
		{"passcode resuming", passcodeOnly, Resuming, true, false, TitlePasscode},
		{"fingerprint resuming", fingerprintOnly, Resuming, false, true, TitleFingerprint},
		{"deferred resuming", deferred, Resuming, false, false, ""},
		{"deferred launching", deferred, Launching, true, true, TitleAuthentication},
		{"deferred backgrounding", deferred, Backgrounding, false, false, ""},
		{"nothing launching", &fakeCredentials{}, Launching, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newCoordinator(t, tt.creds)
			req := c.GetAuthenticationPropsForAppState(tt.state)

			assert.Equal(t, tt.wantPasscode, req.Passcode)
			assert.Equal(t, tt.wantFingerprint, req.Fingerprint)
			assert.Equal(t, tt.wantTitle, req.Title)
			assert.Equal(t, req.Required(), req.OnAuthenticate != nil)
		})
	}
}

func TestOnAuthenticateUnlocks(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{passcode: true})
	c.ReceiveApplicationStartEvent()
	require.True(t, c.IsLocked())

	req := c.GetAuthenticationPropsForAppState(Launching)
	require.NotNil(t, req.OnAuthenticate)
	req.OnAuthenticate()

	assert.False(t, c.IsLocked())
	assert.Equal(t, []State{Launching, Unlocking}, rec.states)
}

func TestMissingCredentialManagerMeansNoCredential(t *testing.T) {
	for name, creds := range map[string]Credentials{
		"nil":       nil,
		"panicking": panickingCredentials{},
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newCoordinator(t, creds)

			assert.False(t, c.ShouldLockApplication())
			assert.False(t, c.GetAuthenticationPropsForAppState(Launching).Required())

			c.ReceiveApplicationStartEvent()
			assert.False(t, c.IsLocked())
		})
	}
}

func TestRemoveObserverDuringOwnCallback(t *testing.T) {
	c, _ := newCoordinator(t, &fakeCredentials{})

	var calls []string
	c.AddStateObserver(func(State) { calls = append(calls, "first") })
	var self ObserverHandle
	self = c.AddStateObserver(func(State) {
		calls = append(calls, "self")
		c.RemoveStateObserver(self)
	})
	c.AddStateObserver(func(State) { calls = append(calls, "third") })

	c.LockApplication()
	assert.Equal(t, []string{"first", "self", "third"}, calls)

	calls = nil
	c.LockApplication()
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestPanickingObserverDoesNotStopFanOut(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})
	c.AddStateObserver(func(State) { panic("observer bug") })
	var after []State
	c.AddStateObserver(func(s State) { after = append(after, s) })

	require.NotPanics(t, c.UnlockApplication)

	assert.Equal(t, []State{Unlocking}, after)
	assert.Contains(t, rec.states, Unlocking)
	assert.False(t, c.IsLocked())
}

func TestRemoveStateObserver(t *testing.T) {
	c, _ := newCoordinator(t, &fakeCredentials{})

	called := false
	h := c.AddStateObserver(func(State) { called = true })
	assert.True(t, c.RemoveStateObserver(h))
	assert.False(t, c.RemoveStateObserver(h))

	c.LockApplication()
	assert.False(t, called)
}

func TestAuthenticationInProgress(t *testing.T) {
	c, rec := newCoordinator(t, &fakeCredentials{})
	assert.False(t, c.IsAuthenticationInProgress())

	c.SetAuthenticationInProgress(true)
	assert.True(t, c.IsAuthenticationInProgress())
	c.SetAuthenticationInProgress(false)
	assert.False(t, c.IsAuthenticationInProgress())

	assert.Equal(t, []State{Launching}, rec.states, "advisory flag has no side effects")
}

func TestCloseDetachesHost(t *testing.T) {
	host := &fakeHost{}
	c, rec := newCoordinator(t, &fakeCredentials{}, WithHostLifecycle(host))
	require.Len(t, host.listeners, 1)

	c.Close()
	c.Close()
	host.send("background")

	assert.Equal(t, 1, host.removed)
	assert.Equal(t, []State{Launching}, rec.states)
}

func TestParseHostState(t *testing.T) {
	assert.Equal(t, HostActive, ParseHostState("active"))
	assert.Equal(t, HostInactive, ParseHostState("inactive"))
	assert.Equal(t, HostBackground, ParseHostState("background"))
	assert.Equal(t, HostUnknown, ParseHostState("Background"))
	assert.Equal(t, "Locking", Locking.String())
}

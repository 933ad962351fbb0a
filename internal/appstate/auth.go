package appstate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/keys"
)

// Challenge titles, in precedence order
const (
	TitleAuthentication = "Authentication Required"
	TitlePasscode       = "Passcode Required"
	TitleFingerprint    = "Fingerprint Required"
)

// Credentials is the credential manager as seen by the coordinator.
// Implementations are expected to be synchronous and side-effect free.
type Credentials interface {
	HasOfflinePasscode() bool
	PasscodeTiming() keys.Timing
	HasFingerprint() bool
	FingerprintTiming() keys.Timing
}

// AuthRequirement describes the challenge that must be shown for a state.
type AuthRequirement struct {
	Title       string
	Passcode    bool
	Fingerprint bool

	// OnAuthenticate completes the challenge by unlocking the application.
	// Nil when no challenge is required.
	OnAuthenticate func()
}

// Required reports whether any credential must be presented
func (r AuthRequirement) Required() bool {
	return r.Passcode || r.Fingerprint
}

type credentialSnapshot struct {
	hasPasscode       bool
	passcodeTiming    keys.Timing
	hasFingerprint    bool
	fingerprintTiming keys.Timing
}

// credentials reads the credential manager once. A nil or panicking manager
// reads as "no credential present".
func (c *Coordinator) credentials() (snap credentialSnapshot) {
	if c.keys == nil {
		return credentialSnapshot{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("credential manager unavailable, assuming no credentials",
				zap.String("panic", fmt.Sprint(rec)))
			snap = credentialSnapshot{}
		}
	}()

	snap.hasPasscode = c.keys.HasOfflinePasscode()
	snap.passcodeTiming = c.keys.PasscodeTiming()
	snap.hasFingerprint = c.keys.HasFingerprint()
	snap.fingerprintTiming = c.keys.FingerprintTiming()
	return snap
}

// GetAuthenticationPropsForAppState computes the challenge required for state.
//
// Unlocking never requires a challenge. Launching requires every credential
// that exists. Resuming requires only credentials timed "immediately". Other
// states are treated like Resuming.
func (c *Coordinator) GetAuthenticationPropsForAppState(state State) AuthRequirement {
	if state == Unlocking {
		return AuthRequirement{}
	}

	creds := c.credentials()
	showPasscode := creds.hasPasscode
	showFingerprint := creds.hasFingerprint

	if state != Launching {
		showPasscode = showPasscode && creds.passcodeTiming == keys.TimingImmediately
		showFingerprint = showFingerprint && creds.fingerprintTiming == keys.TimingImmediately
	}

	req := AuthRequirement{
		Passcode:    showPasscode,
		Fingerprint: showFingerprint,
	}
	switch {
	case showPasscode && showFingerprint:
		req.Title = TitleAuthentication
	case showPasscode:
		req.Title = TitlePasscode
	case showFingerprint:
		req.Title = TitleFingerprint
	}
	if req.Required() {
		req.OnAuthenticate = c.UnlockApplication
	}
	return req
}

// ShouldLockApplication reports whether entering the background locks the
// application. Only credentials timed "immediately" lock; other timings never
// lock on background.
func (c *Coordinator) ShouldLockApplication() bool {
	creds := c.credentials()
	showPasscode := creds.hasPasscode && creds.passcodeTiming == keys.TimingImmediately
	showFingerprint := creds.hasFingerprint && creds.fingerprintTiming == keys.TimingImmediately
	return showPasscode || showFingerprint
}

// Package appstate tracks the host application's lifecycle and decides when
// notelock must be locked behind a passcode or fingerprint challenge.
//
// Transitions:
//   - Launching: fired once during New
//   - Backgrounding: host signal "background", followed by Locking if a
//     credential is timed "immediately"
//   - Resuming: host signal "active"
//   - Locking / Unlocking: LockApplication / UnlockApplication
//
// Lock and unlock always notify observers before the lock flag changes, so an
// observer reading IsLocked inside its callback sees the previous value.
// The lock flag changes only through Locking and Unlocking.
package appstate

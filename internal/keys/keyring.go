package keys

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/crypto"
)

const (
	DefaultService = "notelock"
	DefaultAccount = "default"

	DefaultTiming = TimingOnQuit
)

var (
	ErrNoPasscode    = errors.New("no passcode set")
	ErrWrongPasscode = errors.New("wrong passcode")
)

// Keyring entries, suffixed to the account name
const (
	entryPasscode          = "passcode"
	entryPasscodeTiming    = "passcode-timing"
	entryFingerprint       = "fingerprint"
	entryFingerprintTiming = "fingerprint-timing"
)

// Manager is the credential manager. It keeps the offline passcode hash, the
// fingerprint flag and both timing preferences in the OS keyring.
//
// The query methods never fail: a keyring that is missing, locked or returns
// garbage is reported as "no credential", so the application can always be
// unlocked.
type Manager struct {
	service string
	account string
	logger  *zap.Logger
}

// New creates a Manager storing entries under service/account
func New(service, account string, logger *zap.Logger) *Manager {
	if service == "" {
		service = DefaultService
	}
	if account == "" {
		account = DefaultAccount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		service: service,
		account: account,
		logger:  logger.Named("keys"),
	}
}

func (m *Manager) user(entry string) string {
	return m.account + "/" + entry
}

func (m *Manager) get(entry string) (string, bool) {
	value, err := keyring.Get(m.service, m.user(entry))
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			m.logger.Warn("keyring read failed", zap.String("entry", entry), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (m *Manager) set(entry, value string) error {
	if err := keyring.Set(m.service, m.user(entry), value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", entry, err)
	}
	return nil
}

func (m *Manager) delete(entry string) error {
	err := keyring.Delete(m.service, m.user(entry))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keyring: %w", entry, err)
	}
	return nil
}

func (m *Manager) timing(entry string) Timing {
	value, ok := m.get(entry)
	if !ok {
		return DefaultTiming
	}
	t, err := ParseTiming(value)
	if err != nil {
		m.logger.Warn("ignoring stored timing", zap.String("entry", entry), zap.Error(err))
		return DefaultTiming
	}
	return t
}

// HasOfflinePasscode reports whether a passcode hash is stored
func (m *Manager) HasOfflinePasscode() bool {
	_, ok := m.get(entryPasscode)
	return ok
}

// PasscodeTiming returns the passcode timing preference
func (m *Manager) PasscodeTiming() Timing {
	return m.timing(entryPasscodeTiming)
}

// HasFingerprint reports whether fingerprint authentication is enabled
func (m *Manager) HasFingerprint() bool {
	value, ok := m.get(entryFingerprint)
	return ok && value == "enabled"
}

// FingerprintTiming returns the fingerprint timing preference
func (m *Manager) FingerprintTiming() Timing {
	return m.timing(entryFingerprintTiming)
}

// SetPasscode hashes passcode and stores the hash
func (m *Manager) SetPasscode(passcode []byte) error {
	encoded, err := crypto.HashPasscode(passcode)
	if err != nil {
		return fmt.Errorf("failed to hash passcode: %w", err)
	}
	return m.set(entryPasscode, encoded)
}

// VerifyPasscode checks passcode against the stored hash
func (m *Manager) VerifyPasscode(passcode []byte) error {
	encoded, ok := m.get(entryPasscode)
	if !ok {
		return ErrNoPasscode
	}
	match, err := crypto.VerifyPasscode(encoded, passcode)
	if err != nil {
		return fmt.Errorf("failed to verify passcode: %w", err)
	}
	if !match {
		return ErrWrongPasscode
	}
	return nil
}

// ClearPasscode removes the passcode and its timing preference
func (m *Manager) ClearPasscode() error {
	if err := m.delete(entryPasscode); err != nil {
		return err
	}
	return m.delete(entryPasscodeTiming)
}

// SetPasscodeTiming stores the passcode timing preference
func (m *Manager) SetPasscodeTiming(t Timing) error {
	if t == TimingUnknown {
		return fmt.Errorf("%w: %s", ErrInvalidTiming, t)
	}
	return m.set(entryPasscodeTiming, t.String())
}

// EnableFingerprint turns fingerprint authentication on
func (m *Manager) EnableFingerprint() error {
	return m.set(entryFingerprint, "enabled")
}

// DisableFingerprint turns fingerprint authentication off
func (m *Manager) DisableFingerprint() error {
	if err := m.delete(entryFingerprint); err != nil {
		return err
	}
	return m.delete(entryFingerprintTiming)
}

// SetFingerprintTiming stores the fingerprint timing preference
func (m *Manager) SetFingerprintTiming(t Timing) error {
	if t == TimingUnknown {
		return fmt.Errorf("%w: %s", ErrInvalidTiming, t)
	}
	return m.set(entryFingerprintTiming, t.String())
}

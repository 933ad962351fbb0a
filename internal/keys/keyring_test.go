package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestPasscodeLifecycle(t *testing.T) {
	keyring.MockInit()
	m := New("notelock-test", "passcode", nil)

	assert.False(t, m.HasOfflinePasscode())
	assert.ErrorIs(t, m.VerifyPasscode([]byte("1234")), ErrNoPasscode)

	require.NoError(t, m.SetPasscode([]byte("1234")))
	assert.True(t, m.HasOfflinePasscode())
	assert.NoError(t, m.VerifyPasscode([]byte("1234")))
	assert.ErrorIs(t, m.VerifyPasscode([]byte("0000")), ErrWrongPasscode)

	require.NoError(t, m.SetPasscodeTiming(TimingImmediately))
	assert.Equal(t, TimingImmediately, m.PasscodeTiming())

	require.NoError(t, m.ClearPasscode())
	assert.False(t, m.HasOfflinePasscode())
	assert.Equal(t, DefaultTiming, m.PasscodeTiming())

	// Clearing twice is fine
	require.NoError(t, m.ClearPasscode())
}

func TestFingerprint(t *testing.T) {
	keyring.MockInit()
	m := New("notelock-test", "fingerprint", nil)

	assert.False(t, m.HasFingerprint())
	require.NoError(t, m.EnableFingerprint())
	assert.True(t, m.HasFingerprint())
	assert.Equal(t, DefaultTiming, m.FingerprintTiming())

	require.NoError(t, m.SetFingerprintTiming(TimingImmediately))
	assert.Equal(t, TimingImmediately, m.FingerprintTiming())

	require.NoError(t, m.DisableFingerprint())
	assert.False(t, m.HasFingerprint())
}

func TestUnknownTimingRejected(t *testing.T) {
	keyring.MockInit()
	m := New("notelock-test", "timing", nil)

	assert.ErrorIs(t, m.SetPasscodeTiming(TimingUnknown), ErrInvalidTiming)
	assert.ErrorIs(t, m.SetFingerprintTiming(TimingUnknown), ErrInvalidTiming)
}

func TestGarbageTimingFallsBack(t *testing.T) {
	keyring.MockInit()
	m := New("notelock-test", "garbage", nil)

	require.NoError(t, keyring.Set("notelock-test", "garbage/passcode-timing", "whenever"))
	assert.Equal(t, DefaultTiming, m.PasscodeTiming())
}

func TestUnavailableKeyringMeansNoCredential(t *testing.T) {
	keyring.MockInitWithError(errors.New("keyring locked"))
	m := New("notelock-test", "broken", nil)

	assert.False(t, m.HasOfflinePasscode())
	assert.False(t, m.HasFingerprint())
	assert.Equal(t, DefaultTiming, m.PasscodeTiming())
	assert.Error(t, m.SetPasscode([]byte("1234")))
}

func TestParseTiming(t *testing.T) {
	tests := []struct {
		in      string
		want    Timing
		wantErr bool
	}{
		{"immediately", TimingImmediately, false},
		{"on-quit", TimingOnQuit, false},
		{"onquit", TimingOnQuit, false},
		{"", TimingUnknown, true},
		{"5m", TimingUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTiming(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTiming)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/notelock/internal/crypto"
	"github.com/illarion/notelock/internal/keys"
)

func newPasscodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passcode",
		Short: "Manage the offline passcode",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Set or change the passcode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd, nil)

			// Changing an existing passcode requires the current one
			if a.keys.HasOfflinePasscode() {
				current, err := p.Passcode("Current passcode: ")
				if err != nil {
					return err
				}
				defer crypto.ClearBytes(current)
				if err := a.keys.VerifyPasscode(current); err != nil {
					return err
				}
			}

			passcode, err := p.NewPasscode()
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(passcode)

			if err := a.keys.SetPasscode(passcode); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passcode set")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the passcode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.keys.HasOfflinePasscode() {
				return keys.ErrNoPasscode
			}

			current, err := newPrompter(cmd, nil).Passcode("Current passcode: ")
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(current)
			if err := a.keys.VerifyPasscode(current); err != nil {
				return err
			}

			if err := a.keys.ClearPasscode(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passcode removed")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show configured credentials and timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printCredentialStatus(cmd, a.keys)
			return nil
		},
	})

	return cmd
}

func printCredentialStatus(cmd *cobra.Command, m *keys.Manager) {
	out := cmd.OutOrStdout()
	if m.HasOfflinePasscode() {
		fmt.Fprintf(out, "passcode:    set (%s)\n", m.PasscodeTiming())
	} else {
		fmt.Fprintln(out, "passcode:    not set")
	}
	if m.HasFingerprint() {
		fmt.Fprintf(out, "fingerprint: enabled (%s)\n", m.FingerprintTiming())
	} else {
		fmt.Fprintln(out, "fingerprint: disabled")
	}
}

func newFingerprintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Enable or disable fingerprint authentication",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable fingerprint authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.keys.EnableFingerprint(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Fingerprint enabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable fingerprint authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.keys.DisableFingerprint(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Fingerprint disabled")
			return nil
		},
	})

	return cmd
}

func newTimingCmd(a *app) *cobra.Command {
	var passcodeTiming, fingerprintTiming string

	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Set when each credential is required",
		Long: `Set when each credential is required.

  immediately  lock when the application is backgrounded and ask again on resume
  on-quit      ask only when the application is launched`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passcodeTiming != "" {
				t, err := keys.ParseTiming(passcodeTiming)
				if err != nil {
					return err
				}
				if err := a.keys.SetPasscodeTiming(t); err != nil {
					return err
				}
			}
			if fingerprintTiming != "" {
				t, err := keys.ParseTiming(fingerprintTiming)
				if err != nil {
					return err
				}
				if err := a.keys.SetFingerprintTiming(t); err != nil {
					return err
				}
			}
			printCredentialStatus(cmd, a.keys)
			return nil
		},
	}

	cmd.Flags().StringVar(&passcodeTiming, "passcode", "", "passcode timing (immediately, on-quit)")
	cmd.Flags().StringVar(&fingerprintTiming, "fingerprint", "", "fingerprint timing (immediately, on-quit)")

	return cmd
}

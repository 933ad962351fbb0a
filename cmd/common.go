package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/illarion/notelock/internal/editor"
	"github.com/illarion/notelock/internal/keys"
	"github.com/illarion/notelock/internal/prompt"
	"github.com/illarion/notelock/internal/storage"
)

// describeError returns the user-facing message for err, with an optional hint
func describeError(err error) (msg, hint string) {
	switch {
	case errors.Is(err, keys.ErrNoPasscode):
		return "no passcode set", "Use 'notelock passcode set' to create one"
	case errors.Is(err, keys.ErrWrongPasscode):
		return "wrong passcode", ""
	case errors.Is(err, keys.ErrInvalidTiming):
		return err.Error(), "Valid timings: immediately, on-quit"
	case errors.Is(err, prompt.ErrMismatch):
		return "passcodes do not match", ""
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, editor.ErrNoteNotFound):
		return err.Error(), "Use 'notelock notes ls' to list notes"
	default:
		return err.Error(), ""
	}
}

func printError(w io.Writer, err error) {
	msg, hint := describeError(err)
	fmt.Fprintf(w, "Error: %s\n", msg)
	if hint != "" {
		fmt.Fprintln(w, hint)
	}
}

// HandleError prints err consistently and exits
func HandleError(err error) {
	printError(os.Stderr, err)
	os.Exit(1)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

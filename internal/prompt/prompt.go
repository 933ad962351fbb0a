// Package prompt reads passcodes from the terminal or the environment.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/illarion/notelock/internal/crypto"
)

// EnvPasscode overrides interactive passcode prompts when set
const EnvPasscode = "NOTELOCK_PASSCODE"

var (
	ErrMismatch = errors.New("passcodes do not match")
	ErrEmpty    = errors.New("passcode must not be empty")
)

// Reader prompts for passcodes. When Fd is a terminal the passcode is read
// without echo, otherwise it is read as a line from Lines.
type Reader struct {
	Fd    int
	Lines *bufio.Reader
	Out   io.Writer
}

// New returns a Reader on in, prompting on out. Passcodes are read without
// echo when in is a terminal.
func New(in io.Reader, lines *bufio.Reader, out io.Writer) *Reader {
	if lines == nil {
		lines = bufio.NewReader(in)
	}
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &Reader{Fd: fd, Lines: lines, Out: out}
}

// ReadPasscode reads a passcode without echoing
func (r *Reader) ReadPasscode(prompt string) ([]byte, error) {
	fmt.Fprint(r.Out, prompt)

	if term.IsTerminal(r.Fd) {
		passcode, err := term.ReadPassword(r.Fd)
		fmt.Fprintln(r.Out) // New line after passcode
		if err != nil {
			return nil, fmt.Errorf("failed to read passcode: %w", err)
		}
		return passcode, nil
	}

	line, err := r.Lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, fmt.Errorf("failed to read passcode: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// ReadPasscodeConfirm reads a passcode twice and ensures they match
func (r *Reader) ReadPasscodeConfirm() ([]byte, error) {
	passcode1, err := r.ReadPasscode("Enter passcode: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(passcode1)

	if len(passcode1) == 0 {
		return nil, ErrEmpty
	}

	passcode2, err := r.ReadPasscode("Confirm passcode: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(passcode2)

	if !crypto.ConstantTimeCompare(passcode1, passcode2) {
		return nil, ErrMismatch
	}

	// Return a copy, both inputs are cleared
	result := make([]byte, len(passcode1))
	copy(result, passcode1)
	return result, nil
}

// FromEnv returns a copy of NOTELOCK_PASSCODE, or nil when unset
func FromEnv() []byte {
	passcode := os.Getenv(EnvPasscode)
	if passcode == "" {
		return nil
	}
	return []byte(passcode)
}

// Passcode returns the environment passcode if set, otherwise prompts.
// The caller is responsible for calling crypto.ClearBytes on the result.
func (r *Reader) Passcode(prompt string) ([]byte, error) {
	if passcode := FromEnv(); passcode != nil {
		return passcode, nil
	}
	return r.ReadPasscode(prompt)
}

// NewPasscode is like Passcode but prompts twice for confirmation
func (r *Reader) NewPasscode() ([]byte, error) {
	if passcode := FromEnv(); passcode != nil {
		return passcode, nil
	}
	return r.ReadPasscodeConfirm()
}

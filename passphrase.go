package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"ciphercanvas/internal/seal"
)

var errNoTerminal = errors.New("no terminal to read the password from")

// passwordSource resolves the password for a command: the environment wins,
// otherwise the user is prompted.
type passwordSource struct {
	getenv func(string) string
	prompt func(prompt string) ([]byte, error)
}

// terminalPasswords prompts on w and reads without echo from the terminal.
func terminalPasswords(w io.Writer) passwordSource {
	return passwordSource{
		getenv: os.Getenv,
		prompt: func(prompt string) ([]byte, error) {
			return promptTerminal(w, prompt)
		},
	}
}

// get returns the password, asking twice when confirm is set. Prompted
// buffers are wiped before returning.
func (p passwordSource) get(confirm bool) (string, error) {
	if envPass := p.getenv(PasswordEnvVar); envPass != "" {
		return envPass, nil
	}

	password, err := p.prompt("Enter password: ")
	if err != nil {
		return "", err
	}
	defer seal.Wipe(password)

	if confirm {
		again, err := p.prompt("Confirm password: ")
		if err != nil {
			return "", err
		}
		defer seal.Wipe(again)

		if !bytes.Equal(password, again) {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}
	return string(password), nil
}

// openTerminal picks the descriptor to read a password from. STDIN is used
// when it is a terminal; otherwise it may be carrying the message (hide -f -),
// so the controlling tty is opened instead.
func openTerminal() (*os.File, func(), error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return os.Stdin, func() {}, nil
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: STDIN is not a terminal, set %s", errNoTerminal, PasswordEnvVar)
	}
	return tty, func() { tty.Close() }, nil
}

func promptTerminal(w io.Writer, prompt string) ([]byte, error) {
	in, closeIn, err := openTerminal()
	if err != nil {
		return nil, err
	}
	defer closeIn()

	fmt.Fprint(w, prompt)
	password, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

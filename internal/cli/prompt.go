package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrEmptyCredentials is returned when the username or password is blank.
var ErrEmptyCredentials = errors.New("username and password are required")

// PromptCredentials asks for a username (unless one is given) and a masked
// password on the terminal.
func PromptCredentials(in io.ReadCloser, out io.Writer, username string) (string, string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Username: ",
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
		EnableMask:      true,
		MaskRune:        '*',
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	if strings.TrimSpace(username) == "" {
		line, err := rl.Readline()
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = line
	}

	password, err := rl.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	return ValidateCredentials(username, string(password))
}

// ValidateCredentials trims the username and rejects blank input.
func ValidateCredentials(username, password string) (string, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", "", ErrEmptyCredentials
	}
	return username, password, nil
}

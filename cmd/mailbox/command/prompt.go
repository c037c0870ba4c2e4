package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mailboxhub/internal/config"
)

// promptDevice asks for whatever part of the device address is missing.
func promptDevice(in *bufio.Reader, out io.Writer, cfg *config.Config) error {
	if cfg.MailboxHost == "" {
		host, err := ask(in, out, "Hostname: ")
		if err != nil {
			return err
		}
		cfg.MailboxHost = host
	}
	if cfg.MailboxPort == 0 {
		answer, err := ask(in, out, "Port: ")
		if err != nil {
			return err
		}
		port, err := parsePort(answer)
		if err != nil {
			return err
		}
		cfg.MailboxPort = port
	}
	return nil
}

func ask(in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	answer, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

type keyAction int

const (
	keyNone keyAction = iota
	keyToggle
	keyQuit
)

// parseKey maps one line typed while watching to an action. A bare Enter
// toggles.
func parseKey(line string) keyAction {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "t":
		return keyToggle
	case "q":
		return keyQuit
	default:
		return keyNone
	}
}

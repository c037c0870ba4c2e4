package controller

// controller.go = drives the mailbox unit: lamp commands out, drop counts to the display.

import (
	"errors"
	"fmt"
	"log/slog"

	"mailboxhub/internal/transport"
)

const (
	CommandOn  = "on"
	CommandOff = "off"

	DefaultLabelFormat  = "Briefeinwürfe %s"
	DefaultInitialLabel = "Briefeinwürfe: 0"
)

var ErrNotAttached = errors.New("controller: no link attached")

// Link is the outbound side of the transport.
type Link interface {
	Send(text string) error
	Close() error
}

// Display receives everything the user should see.
type Display interface {
	SetText(text string)
	SetLamp(on bool)
	Alert(msg string)
}

type Config struct {
	Display      Display // required
	LabelFormat  string
	InitialLabel string
	Logger       *slog.Logger
	// OnFatal is called once when the link dies underneath the controller.
	OnFatal func(err error)
}

// Controller must only be used from the event-loop goroutine.
type Controller struct {
	link    Link
	display Display
	logger  *slog.Logger
	format  string
	onFatal func(err error)

	failed   bool
	lampOn   bool
	received int
	shutdown bool
}

func New(cfg Config) (*Controller, error) {
	if cfg.Display == nil {
		return nil, errors.New("controller: display is required")
	}
	if cfg.LabelFormat == "" {
		cfg.LabelFormat = DefaultLabelFormat
	}
	if cfg.InitialLabel == "" {
		cfg.InitialLabel = DefaultInitialLabel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnFatal == nil {
		cfg.OnFatal = func(error) {}
	}

	c := &Controller{
		display: cfg.Display,
		logger:  cfg.Logger,
		format:  cfg.LabelFormat,
		onFatal: cfg.OnFatal,
	}
	c.display.SetText(cfg.InitialLabel)
	return c, nil
}

// Attach hands the controller its link and puts the lamp into a known state.
func (c *Controller) Attach(link Link) error {
	c.link = link
	return c.SetLamp(false)
}

// HandleMessage is the transport's message handler.
func (c *Controller) HandleMessage(line string) {
	c.received++
	c.logger.Debug("device_message", "line", line)
	c.display.SetText(fmt.Sprintf(c.format, line))
}

// HandleError is the transport's error handler.
func (c *Controller) HandleError(err error) {
	switch {
	case transport.IsDecode(err):
		c.logger.Warn("device_message_malformed", "error", err)
		c.display.Alert("ignored a malformed message from the device")
	case errors.Is(err, transport.ErrLineTooLong):
		c.logger.Warn("device_message_oversized", "error", err)
		c.display.Alert("ignored an oversized message from the device")
	case transport.IsConnectionClosed(err):
		c.logger.Warn("device_disconnected")
		c.display.Alert("the mailbox closed the connection")
		c.fatal(err)
	default:
		c.logger.Error("device_link_failed", "error", err)
		c.display.Alert(fmt.Sprintf("connection problem: %v", err))
		if transport.IsFatal(err) {
			c.fatal(err)
		}
	}
}

func (c *Controller) fatal(err error) {
	if c.failed {
		return
	}
	c.failed = true
	c.onFatal(err)
}

// SetLamp sends the matching command and records the new state once the
// command is on its way.
func (c *Controller) SetLamp(on bool) error {
	if c.link == nil {
		return ErrNotAttached
	}
	cmd := CommandOff
	if on {
		cmd = CommandOn
	}
	if err := c.link.Send(cmd); err != nil {
		c.logger.Error("lamp_command_failed", "command", cmd, "error", err)
		c.display.Alert(fmt.Sprintf("could not switch lamp %s: %v", cmd, err))
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	c.lampOn = on
	c.display.SetLamp(on)
	c.logger.Info("lamp_switched", "on", on)
	return nil
}

// Toggle flips the lamp.
func (c *Controller) Toggle() error {
	return c.SetLamp(!c.lampOn)
}

func (c *Controller) Lamp() bool {
	return c.lampOn
}

// Received returns how many device messages have been shown.
func (c *Controller) Received() int {
	return c.received
}

// Shutdown closes the link. The display may be released afterwards.
func (c *Controller) Shutdown() error {
	if c.shutdown {
		return nil
	}
	c.shutdown = true
	if c.link == nil {
		return nil
	}
	if err := c.link.Close(); err != nil {
		return fmt.Errorf("close link: %w", err)
	}
	c.logger.Info("controller_shutdown", "messages_received", c.received)
	return nil
}

package command

import (
	"bufio"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mailboxhub/internal/controller"
	"mailboxhub/internal/eventloop"
	"mailboxhub/internal/logging"
	"mailboxhub/internal/transport"
)

var sendCmd = &cobra.Command{
	Use:       "send on|off",
	Short:     "Send one lamp command and disconnect",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{controller.CommandOn, controller.CommandOff},
	RunE:      runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	// the loop is never run: nothing is read, only one frame goes out
	loop := eventloop.New(eventloop.Config{Logger: logger})
	link, err := transport.Dial(cmd.Context(), cfg.MailboxHost, cfg.MailboxPort, func(string) {}, transport.Config{
		Scheduler:    loop,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer loop.Stop()

	if err := link.Send(args[0]); err != nil {
		link.Close()
		return fmt.Errorf("send %q: %w", args[0], err)
	}
	if err := link.Close(); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ sent %q to %s:%d\n", args[0], cfg.MailboxHost, cfg.MailboxPort)
	return nil
}

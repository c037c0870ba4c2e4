package command

// root.go defines the root command for the mailbox CLI and the flags shared by
// every subcommand.

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mailboxhub/internal/config"
)

var (
	deviceHost string // overrides MAILBOX_HOST
	devicePort int    // overrides MAILBOX_PORT
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "mailbox - monitor the mailbox sensor unit",
	Long: `mailbox talks to the mailbox sensor unit over TCP. It can:
- Show the letter count reported by the unit as it changes
- Switch the unit's lamp on and off

The unit is found through MAILBOX_HOST / MAILBOX_PORT (or a .env file),
the --host / --port flags, or an interactive prompt.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceHost, "host", "", "mailbox unit host (default $MAILBOX_HOST)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 0, "mailbox unit port (default $MAILBOX_PORT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json (default $LOG_FORMAT)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
}

// loadSettings merges environment, flags and, when the device address is
// still missing, answers read from in.
func loadSettings(cmd *cobra.Command, in *bufio.Reader, out io.Writer) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.MailboxHost = deviceHost
	}
	if flags.Changed("port") {
		cfg.MailboxPort = devicePort
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Lookup("status-addr") != nil && flags.Changed("status-addr") {
		cfg.StatusAddr = statusAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := promptDevice(in, out, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ValidateDevice(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mailboxhub/internal/controller"
	"mailboxhub/internal/display"
	"mailboxhub/internal/eventloop"
	"mailboxhub/internal/logging"
	"mailboxhub/internal/statusapi"
	"mailboxhub/internal/transport"
)

var statusAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the letter count and control the lamp",
	Long: `Connect to the mailbox unit and show every count it reports.

While watching:
  t or Enter   toggle the lamp
  q            quit

With --status-addr the current state is also served over HTTP
(GET /api/status, POST /api/lamp/toggle, PUT /api/lamp).

The command ends when the unit closes the connection, on q, or on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve the status board on this address (default $STATUS_ADDR)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	cfg, err := loadSettings(cmd, in, out)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(eventloop.Config{Logger: logger})
	board := display.NewBoard()
	term := display.NewTerminal(out)

	// written on the loop goroutine, read after it has finished
	var lost error
	ctrl, err := controller.New(controller.Config{
		Display:     display.Fanout{term, board},
		LabelFormat: cfg.LabelFormat,
		Logger:      logger,
		OnFatal: func(err error) {
			lost = err
			loop.Stop()
		},
	})
	if err != nil {
		return err
	}

	link, err := transport.Dial(ctx, cfg.MailboxHost, cfg.MailboxPort, ctrl.HandleMessage, transport.Config{
		Scheduler:     loop,
		OnError:       ctrl.HandleError,
		PollInterval:  cfg.PollInterval,
		ReadChunkSize: cfg.ReadChunkSize,
		MaxLineLength: cfg.MaxLineLength,
		DialTimeout:   cfg.DialTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	// the loop is not running yet, so this goroutine still owns the controller
	if err := ctrl.Attach(link); err != nil {
		link.Close()
		return err
	}
	term.Help()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	remote := controller.NewRemote(ctrl, loop)
	if cfg.StatusAddr != "" {
		srv := statusapi.NewServer(cfg.StatusAddr, statusapi.NewHandler(board, remote), logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	// blocks on stdin, so it stays outside the group
	go readKeys(gctx, in, remote, cancel, logger)

	runErr := g.Wait()

	// the loop has returned; this goroutine owns the controller again
	if err := ctrl.Shutdown(); err != nil {
		logger.Warn("shutdown_failed", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	if lost != nil {
		return fmt.Errorf("mailbox connection lost: %w", lost)
	}
	return nil
}

// readKeys turns typed lines into lamp toggles until quit, EOF or ctx ends.
func readKeys(ctx context.Context, in *bufio.Reader, remote *controller.Remote, quit func(), logger *slog.Logger) {
	for {
		line, err := in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		switch parseKey(line) {
		case keyToggle:
			if _, err := remote.Toggle(ctx); err != nil {
				// the controller already alerted
				logger.Debug("toggle_failed", "error", err)
			}
		case keyQuit:
			quit()
			return
		}
		if err != nil {
			return
		}
	}
}

// Command chat-server runs the event-driven TCP chat server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/server"
)

var (
	logFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chat-server <port>",
		Short:        "Event-driven TCP chat server",
		Long:         "Runs a single-threaded, readiness-driven chat server that accepts TCP clients speaking the length-prefixed chat protocol.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file in addition to stderr")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q: must be between 1 and 65535", args[0])
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var log logger.Logger
	if logFile != "" {
		log, err = logger.NewFile(os.Stderr, logFile, "chat-server", level)
		if err != nil {
			return err
		}
	} else {
		log = logger.New(os.Stderr, "chat-server", level)
	}
	defer func() {
		_ = log.Close()
	}()

	srv := server.New(port, log)
	if err := srv.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutdown signal received")
	srv.Stop()

	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

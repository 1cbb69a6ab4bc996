// Command chat-client runs the terminal chat client.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-chat/client"
	"github.com/cyberinferno/go-chat/logger"
)

const maxUsernameBytes = 32

var (
	logFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chat-client <host> <port> <username>",
		Short:        "Terminal client for the chat server",
		Long:         "Connects to a chat server, joins under the given username and relays console input: plain lines broadcast, '@name message' sends privately, '/list' shows who is online, '/exit' leaves.",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file in addition to stderr")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q: must be between 1 and 65535", args[1])
	}
	username := args[2]
	if len(username) == 0 || len(username) > maxUsernameBytes {
		return fmt.Errorf("username must be between 1 and %d bytes", maxUsernameBytes)
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var log logger.Logger
	if logFile != "" {
		log, err = logger.NewFile(os.Stderr, logFile, "chat-client", level)
		if err != nil {
			return err
		}
	} else {
		log = logger.New(os.Stderr, "chat-client", level)
	}
	defer func() {
		_ = log.Close()
	}()

	conn := client.NewServerConnection(log)
	c := client.NewChatClient(username, conn, log, os.Stdout)

	if err := c.ConnectAndJoin(host, port); err != nil {
		return err
	}

	return c.Run(os.Stdin)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

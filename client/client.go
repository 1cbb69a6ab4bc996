package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/protocol"
)

// ChatClient ties console input and server frames together: the input
// goroutine turns typed lines into chat messages, the receive goroutine
// (owned by the ServerConnection) turns server frames into console output
// and roster updates.
type ChatClient struct {
	log      logger.Logger
	username string
	conn     *ServerConnection
	out      io.Writer
	users    *roster

	userID  atomic.Uint32
	running atomic.Bool
}

// NewChatClient creates a client for the given username.
//
// Parameters:
//   - username: The name to join the chat under
//   - conn: The server connection, typically not yet connected
//   - log: Logger for connection and protocol events
//   - out: Destination for chat output, typically os.Stdout
//
// Returns:
//   - The new ChatClient; call ConnectAndJoin to go online
func NewChatClient(username string, conn *ServerConnection, log logger.Logger, out io.Writer) *ChatClient {
	if log == nil {
		log = logger.NewNop()
	}

	return &ChatClient{
		log:      log,
		username: username,
		conn:     conn,
		out:      out,
		users:    newRoster(),
	}
}

// ConnectAndJoin dials the server, sends the join request and starts
// receiving. The join outcome arrives asynchronously as JoinSuccess or
// JoinFailure through the message handler.
//
// Returns:
//   - An error if dialing or sending the join request fails
func (c *ChatClient) ConnectAndJoin(host string, port int) error {
	if err := c.conn.Connect(host, port); err != nil {
		return err
	}

	return c.start()
}

// start sends the join request and launches the receive goroutine on an
// already-established connection.
func (c *ChatClient) start() error {
	join := protocol.NewText(protocol.MsgJoin, 0, protocol.ServerID, c.username)
	if err := c.conn.Send(join); err != nil {
		return err
	}

	c.running.Store(true)
	c.conn.StartReceiving(c.handleMessage)

	return nil
}

// Run reads user commands from input until the input ends, the user exits
// or the server side winds the client down, then disconnects and waits for
// the receive goroutine.
//
// A receive-side stop cannot interrupt a read already blocked on input; the
// loop notices the stop on the next line, which is as good as a console
// client gets.
//
// Returns:
//   - The receive goroutine's error, if the connection failed mid-session
func (c *ChatClient) Run(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	for c.running.Load() && scanner.Scan() {
		line := scanner.Text()
		if line == "/exit" {
			if err := c.conn.Send(protocol.Message{Type: protocol.MsgLeave, SenderID: c.userID.Load(), ReceiverID: protocol.ServerID}); err != nil {
				c.log.Warn("failed to send leave", logger.Field{Key: "error", Value: err})
			}
			break
		}
		c.handleInput(line)
	}

	c.log.Info("input loop terminated, client shutting down")
	c.running.Store(false)
	_ = c.conn.Close()

	return c.conn.Wait()
}

// UserID returns the id assigned by the server, zero before JoinSuccess.
func (c *ChatClient) UserID() uint32 {
	return c.userID.Load()
}

// handleInput turns one typed line into a chat message. A leading "@name "
// selects private framing with the recipient resolved through the local
// roster; "/list" requests the user list; any other non-empty line is a
// broadcast.
func (c *ChatClient) handleInput(line string) {
	if line == "" {
		return
	}

	var msg protocol.Message
	switch {
	case line == "/list":
		msg = protocol.Message{Type: protocol.MsgUserList, SenderID: c.userID.Load(), ReceiverID: protocol.ServerID}

	case strings.HasPrefix(line, "@"):
		space := strings.Index(line, " ")
		if space < 0 {
			fmt.Fprintln(c.out, "Invalid private message format. Use @username message.")
			return
		}
		recipient := line[1:space]
		id, ok := c.users.idByName(recipient)
		if !ok {
			fmt.Fprintf(c.out, "User '%s' not found.\n", recipient)
			return
		}
		msg = protocol.NewText(protocol.MsgPrivate, c.userID.Load(), id, line[space+1:])

	default:
		msg = protocol.NewText(protocol.MsgBroadcast, c.userID.Load(), protocol.BroadcastID, line)
	}

	if err := c.conn.Send(msg); err != nil {
		c.log.Error("failed to send message",
			logger.Field{Key: "type", Value: msg.Type.String()},
			logger.Field{Key: "error", Value: err})
	}
}

// handleMessage renders one server frame on the console and keeps the
// roster in sync. Runs on the receive goroutine.
func (c *ChatClient) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgJoinSuccess:
		c.userID.Store(msg.ReceiverID)
		c.users.add(msg.ReceiverID, c.username)
		fmt.Fprintf(c.out, "[Server]: %s (Your ID: %d)\n", msg.Text(), msg.ReceiverID)

	case protocol.MsgJoinFailure:
		fmt.Fprintf(c.out, "[Server Error]: %s\n", msg.Text())
		c.stop()

	case protocol.MsgUserJoined:
		c.users.add(msg.SenderID, msg.Text())
		fmt.Fprintf(c.out, "[Server]: User '%s' has joined the chat.\n", msg.Text())

	case protocol.MsgUserLeft:
		if msg.SenderID == protocol.ServerID {
			fmt.Fprintln(c.out, "You have left the chat.")
			c.stop()
			return
		}
		c.users.removeByID(msg.SenderID)
		fmt.Fprintf(c.out, "[Server]: User '%s' has left the chat.\n", msg.Text())

	case protocol.MsgServerBroadcast, protocol.MsgServerPrivate:
		fmt.Fprintf(c.out, "@%s> %s\n", c.users.nameByID(msg.SenderID), msg.Text())

	case protocol.MsgUserList:
		fmt.Fprintln(c.out, "[Server]: Current users in the chat:")
		for _, entry := range c.users.mergeList(msg.Text()) {
			fmt.Fprintf(c.out, "  - %s\n", entry)
		}

	case protocol.MsgError:
		fmt.Fprintf(c.out, "[Server Error]: %s\n", msg.Text())

	case protocol.MsgServerShutdown:
		fmt.Fprintf(c.out, "[Server]: %s\n", msg.Text())
		c.stop()

	default:
		c.log.Warn("unexpected message type", logger.Field{Key: "type", Value: msg.Type.String()})
	}
}

// stop flips the running flag and closes the connection. The input loop
// notices on its next line.
func (c *ChatClient) stop() {
	c.running.Store(false)
	_ = c.conn.Close()
}

// Package interactive provides the interactive command-line interface
// for the SLINK client.
package interactive

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/slink-protocol/slink-go/pkg/connection"
	"github.com/slink-protocol/slink-go/pkg/discovery"
	"github.com/slink-protocol/slink-go/pkg/persistence"
	"github.com/slink-protocol/slink-go/pkg/transport"
)

// Endpoint gives the interactive layer access to the managed
// connection without depending on the main package's wiring.
type Endpoint interface {
	// Conn returns the active connection, or nil when disconnected.
	Conn() *transport.ClientConn

	// Connect performs a caller-initiated connection attempt.
	Connect() error

	// Disconnect closes the active connection without reconnecting.
	Disconnect()

	// State returns the managed connection state.
	State() connection.State

	// RemoteAddress returns the configured peer address.
	RemoteAddress() string

	// KnownPeers lists the recorded peer identities.
	KnownPeers() ([]persistence.KnownPeer, error)

	// ForgetPeer removes a recorded peer fingerprint.
	ForgetPeer(fingerprint string) error
}

// Client handles interactive mode for slink-client.
type Client struct {
	ep Endpoint
	rl *readline.Instance

	pingSeq uint32
}

// New creates a new interactive client handler.
func New(ep Endpoint) (*Client, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "slink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Client{ep: ep, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for asynchronous output such as received messages.
func (c *Client) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Client) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "send", "s":
			c.cmdSend(args)

		case "ping":
			c.cmdPing()

		case "status", "st":
			c.cmdStatus()

		case "peers", "p":
			c.cmdPeers()

		case "forget":
			c.cmdForget(args)

		case "discover", "d":
			c.cmdDiscover(args)

		case "connect":
			c.cmdConnect()

		case "disconnect":
			c.ep.Disconnect()
			fmt.Fprintln(c.rl.Stdout(), "Disconnected")

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (c *Client) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `Commands:
  send <text>       Send a message to the peer
  ping              Send a keep-alive ping
  status            Show connection status
  peers             List known peer identities
  forget <fp>       Forget a known peer fingerprint
  discover [secs]   Browse for SLINK endpoints via mDNS
  connect           Connect to the configured peer
  disconnect        Close the connection
  quit              Exit
`)
}

func (c *Client) cmdSend(args []string) {
	conn := c.ep.Conn()
	if conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <text>")
		return
	}

	payload := []byte(strings.Join(args, " "))
	if err := conn.Send(payload); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Sent %d bytes\n", len(payload))
}

func (c *Client) cmdPing() {
	conn := c.ep.Conn()
	if conn == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}

	c.pingSeq++
	if err := conn.SendPing(c.pingSeq); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Ping failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Ping sent (seq %d)\n", c.pingSeq)
}

func (c *Client) cmdStatus() {
	w := c.rl.Stdout()
	fmt.Fprintf(w, "State:   %s\n", c.ep.State())
	fmt.Fprintf(w, "Peer:    %s\n", c.ep.RemoteAddress())

	conn := c.ep.Conn()
	if conn == nil {
		return
	}

	fmt.Fprintf(w, "ConnID:  %s\n", conn.ConnID())
	state := conn.TLSState()
	fmt.Fprintf(w, "Cipher:  %s\n", tls.CipherSuiteName(state.CipherSuite))
	fmt.Fprintf(w, "ALPN:    %s\n", state.NegotiatedProtocol)
	if id, ok := conn.PeerIdentity(); ok {
		fmt.Fprintf(w, "Subject: %s\n", id.Subject)
		fmt.Fprintf(w, "Fingerprint: %s\n", id.Fingerprint)
	}
	if stats, ok := conn.KeepAliveStats(); ok {
		fmt.Fprintf(w, "KeepAlive: missed=%d", stats.MissedPongs)
		if !stats.LastPongTime.IsZero() {
			fmt.Fprintf(w, " lastPong=%s", stats.LastPongTime.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
}

func (c *Client) cmdPeers() {
	peers, err := c.ep.KnownPeers()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to read peers: %v\n", err)
		return
	}
	if len(peers) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No known peers")
		return
	}
	for _, p := range peers {
		fmt.Fprintf(c.rl.Stdout(), "%s\n  subject %s, address %s\n  first seen %s, last seen %s\n",
			p.Fingerprint, p.Subject, p.Address,
			p.FirstSeen.Format(time.RFC3339), p.LastSeen.Format(time.RFC3339))
	}
}

func (c *Client) cmdForget(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: forget <fingerprint>")
		return
	}
	if err := c.ep.ForgetPeer(args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Forget failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Forgotten")
}

func (c *Client) cmdDiscover(args []string) {
	seconds := 3
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: discover [seconds]")
			return
		}
		seconds = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seconds)*time.Second)
	defer cancel()

	browser := discovery.NewBrowser(discovery.BrowserConfig{})
	results, err := browser.Browse(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Browse failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Browsing for %ds...\n", seconds)
	found := 0
	for ep := range results {
		found++
		fmt.Fprintf(c.rl.Stdout(), "%s (%s:%d)\n  fingerprint %s\n",
			ep.InstanceName, ep.Host, ep.Port, ep.Fingerprint)
		if ep.Name != "" {
			fmt.Fprintf(c.rl.Stdout(), "  name %q\n", ep.Name)
		}
	}
	if found == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No endpoints found")
	}
}

func (c *Client) cmdConnect() {
	if err := c.ep.Connect(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Connected")
}

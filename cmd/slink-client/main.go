// Command slink-client connects to a SLINK endpoint and provides an
// interactive shell for sending messages, pinging the peer, and
// inspecting the connection. Lost connections are re-established
// automatically with exponential backoff.
//
// Usage:
//
//	slink-client [flags] [host:port]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-cert string          Certificate PEM file
//	-key string           Private key PEM file
//	-pin string           Required SHA-256 fingerprint of the server certificate
//	-insecure             Skip server certificate verification (testing only)
//	-protocol-log string  Protocol log output file (.plog)
//	-peers string         Known-peers file (default ~/.slink/peers.json)
//	-no-reconnect         Disable automatic reconnection
//
// The peer address comes from the positional argument or, failing
// that, from the configuration file. Peer certificate fingerprints are
// recorded on first contact so identity changes stand out later.
//
// Examples:
//
//	# Connect to a local development server
//	slink-client -insecure 127.0.0.1:8443
//
//	# Connect with a pinned server identity
//	slink-client -pin <fingerprint> gateway.local:443
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/slink-protocol/slink-go/cmd/slink-client/interactive"
	"github.com/slink-protocol/slink-go/internal/devcreds"
	"github.com/slink-protocol/slink-go/pkg/cert"
	"github.com/slink-protocol/slink-go/pkg/config"
	"github.com/slink-protocol/slink-go/pkg/connection"
	"github.com/slink-protocol/slink-go/pkg/log"
	"github.com/slink-protocol/slink-go/pkg/persistence"
	"github.com/slink-protocol/slink-go/pkg/transport"
)

// receivePollInterval bounds how long the read loop blocks per call.
const receivePollInterval = time.Second

// app wires the transport client, reconnect manager and peer store
// together and exposes them to the interactive shell.
type app struct {
	client  *transport.Client
	manager *connection.Manager
	store   *persistence.PeerStore
	address string

	mu   sync.RWMutex
	conn *transport.ClientConn

	out func() *interactive.Client // set after the shell exists
}

func main() {
	configFile := flag.String("config", "", "Configuration file path (YAML)")
	certFile := flag.String("cert", "", "Certificate PEM file")
	keyFile := flag.String("key", "", "Private key PEM file")
	pin := flag.String("pin", "", "Required SHA-256 fingerprint of the server certificate")
	insecure := flag.Bool("insecure", false, "Skip server certificate verification (testing only)")
	protocolLog := flag.String("protocol-log", "", "Protocol log output file (.plog)")
	peersFile := flag.String("peers", "", "Known-peers file (default ~/.slink/peers.json)")
	noReconnect := flag.Bool("no-reconnect", false, "Disable automatic reconnection")
	flag.Parse()

	stdlog.SetFlags(stdlog.Ltime)

	cfg := loadConfig(*configFile)
	if *certFile != "" {
		cfg.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.KeyFile = *keyFile
	}
	if *pin != "" {
		cfg.PinnedPeerFingerprint = *pin
	}
	if *insecure {
		cfg.InsecureSkipVerify = true
	}
	if *protocolLog != "" {
		cfg.LogFile = *protocolLog
	}

	address := flag.Arg(0)
	if address == "" {
		if cfg.Host == "" {
			stdlog.Fatal("No peer address: pass host:port or set host in the config file")
		}
		address = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	}

	credential := loadCredential(cfg)

	var logger log.Logger
	if cfg.LogFile != "" {
		fileLogger, err := log.NewFileLogger(cfg.LogFile)
		if err != nil {
			stdlog.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	client, err := transport.NewClient(transport.ClientConfig{
		TLS: &transport.TLSConfig{
			Credential:            credential,
			PinnedPeerFingerprint: cfg.PinnedPeerFingerprint,
			InsecureSkipVerify:    cfg.InsecureSkipVerify,
			ServerName:            cfg.Host,
		},
		MaxMessageSize:  cfg.MaxMessageSize,
		EnableKeepAlive: cfg.KeepAlive.Enabled,
		KeepAlive: transport.KeepAliveConfig{
			PingInterval:   cfg.KeepAlive.PingInterval,
			PongTimeout:    cfg.KeepAlive.PongTimeout,
			MaxMissedPongs: cfg.KeepAlive.MaxMissedPongs,
		},
		Logger: logger,
	})
	if err != nil {
		stdlog.Fatalf("Failed to create client: %v", err)
	}

	a := &app{
		client:  client,
		store:   persistence.NewPeerStore(peerStorePath(*peersFile)),
		address: address,
	}
	a.manager = connection.NewManager(a.connect)
	a.manager.SetAutoReconnect(!*noReconnect)
	a.manager.OnReconnecting(func(attempt int, delay time.Duration) {
		a.printf("Reconnecting in %s (attempt %d)...\n", delay, attempt)
	})
	a.manager.OnDisconnected(func() {
		a.printf("Connection lost\n")
	})
	a.manager.StartReconnectLoop()
	defer a.manager.Close()

	shell, err := interactive.New(a)
	if err != nil {
		stdlog.Fatalf("Failed to start shell: %v", err)
	}
	a.out = func() *interactive.Client { return shell }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Connect(); err != nil {
		stdlog.Printf("Initial connect failed: %v", err)
	} else {
		stdlog.Printf("Connected to %s", address)
	}

	shell.Run(ctx, cancel)
	a.Disconnect()
}

// Conn returns the active connection, or nil.
func (a *app) Conn() *transport.ClientConn {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn
}

// Connect performs a caller-initiated connection attempt.
func (a *app) Connect() error {
	return a.manager.Connect(context.Background())
}

// Disconnect closes the active connection without reconnecting.
func (a *app) Disconnect() {
	a.manager.SetAutoReconnect(false)
	a.closeConn()
}

// State returns the managed connection state.
func (a *app) State() connection.State {
	return a.manager.State()
}

// RemoteAddress returns the configured peer address.
func (a *app) RemoteAddress() string {
	return a.address
}

// KnownPeers lists the recorded peer identities.
func (a *app) KnownPeers() ([]persistence.KnownPeer, error) {
	return a.store.Peers()
}

// ForgetPeer removes a recorded peer fingerprint.
func (a *app) ForgetPeer(fingerprint string) error {
	return a.store.Forget(fingerprint)
}

// connect is the manager's ConnectFunc: dial, record the peer
// identity, and start the read loop.
func (a *app) connect(ctx context.Context) error {
	conn, err := a.client.Connect(ctx, a.address)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	a.rememberPeer(conn)
	go a.readLoop(conn)
	return nil
}

// rememberPeer records the peer identity for trust-on-first-use.
func (a *app) rememberPeer(conn *transport.ClientConn) {
	id, ok := conn.PeerIdentity()
	if !ok {
		return
	}
	known, err := a.store.Remember(id.Fingerprint, id.Subject, a.address)
	if err != nil {
		a.printf("Failed to record peer: %v\n", err)
		return
	}
	if !known {
		a.printf("New peer recorded: %s (%s)\n", id.Subject, id.Fingerprint)
	}
}

// readLoop drains one connection, printing data messages until the
// connection dies.
func (a *app) readLoop(conn *transport.ClientConn) {
	for {
		payload, err := conn.Receive(receivePollInterval)
		if err != nil {
			if errors.Is(err, transport.ErrNoData) {
				continue
			}
			a.mu.Lock()
			if a.conn == conn {
				a.conn = nil
			}
			a.mu.Unlock()
			conn.Close()
			a.manager.ConnectionLost()
			return
		}
		a.printf("<< %s\n", payload)
	}
}

func (a *app) closeConn() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	if conn != nil {
		conn.SendClose()
		conn.Close()
	}
}

// printf writes through the readline-coordinated writer when the
// shell exists, falling back to the standard logger.
func (a *app) printf(format string, args ...any) {
	if a.out != nil {
		if shell := a.out(); shell != nil {
			fmt.Fprintf(shell.Stdout(), format, args...)
			return
		}
	}
	stdlog.Printf(format, args...)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func loadCredential(cfg *config.Config) *cert.Credential {
	if cfg.CertFile != "" {
		credential, err := cert.LoadFiles(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			stdlog.Fatalf("Failed to load credential: %v", err)
		}
		return credential
	}

	credential, err := devcreds.Credential()
	if err != nil {
		stdlog.Fatalf("Failed to load embedded credential: %v", err)
	}
	stdlog.Println("WARNING: using the embedded development credential; do not use in production")
	return credential
}

func peerStorePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "peers.json"
	}
	return filepath.Join(home, ".slink", "peers.json")
}

// Command slink-server runs a SLINK endpoint that accepts TLS 1.3
// connections, answers keep-alive pings, and echoes application
// messages back to the sender.
//
// Usage:
//
//	slink-server [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-listen string        Listen address (default ":443")
//	-cert string          Certificate PEM file
//	-key string           Private key PEM file
//	-pin string           Required SHA-256 fingerprint of client certificates
//	-insecure             Accept any client certificate (testing only)
//	-protocol-log string  Protocol log output file (.plog)
//	-advertise            Advertise the endpoint via mDNS
//	-name string          Endpoint name for mDNS advertising
//
// With no -cert/-key the embedded development credential is used and a
// warning is printed.
//
// Examples:
//
//	# Development server on port 8443 with mDNS advertising
//	slink-server -listen :8443 -advertise -name "Lab Gateway"
//
//	# Production server with provisioned identity and pinned clients
//	slink-server -cert /etc/slink/cert.pem -key /etc/slink/key.pem -pin <fingerprint>
package main

import (
	"context"
	"flag"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/slink-protocol/slink-go/internal/devcreds"
	"github.com/slink-protocol/slink-go/pkg/cert"
	"github.com/slink-protocol/slink-go/pkg/config"
	"github.com/slink-protocol/slink-go/pkg/discovery"
	"github.com/slink-protocol/slink-go/pkg/log"
	"github.com/slink-protocol/slink-go/pkg/transport"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (YAML)")
	listen := flag.String("listen", "", "Listen address (default :443)")
	certFile := flag.String("cert", "", "Certificate PEM file")
	keyFile := flag.String("key", "", "Private key PEM file")
	pin := flag.String("pin", "", "Required SHA-256 fingerprint of client certificates")
	insecure := flag.Bool("insecure", false, "Accept any client certificate (testing only)")
	protocolLog := flag.String("protocol-log", "", "Protocol log output file (.plog)")
	advertise := flag.Bool("advertise", false, "Advertise the endpoint via mDNS")
	name := flag.String("name", "", "Endpoint name for mDNS advertising")
	flag.Parse()

	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

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

	address := *listen
	if address == "" {
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
		stdlog.Printf("Protocol log: %s", cfg.LogFile)
	}

	server, err := transport.NewServer(transport.ServerConfig{
		TLS: &transport.TLSConfig{
			Credential:            credential,
			PinnedPeerFingerprint: cfg.PinnedPeerFingerprint,
			InsecureSkipVerify:    cfg.InsecureSkipVerify,
		},
		Address:        address,
		MaxMessageSize: cfg.MaxMessageSize,
		Logger:         logger,
		OnConnect: func(conn *transport.ServerConn) {
			peer := "no certificate"
			if id, ok := conn.PeerIdentity(); ok {
				peer = id.Subject
			}
			stdlog.Printf("Connected: %s (%s)", conn.RemoteAddr(), peer)
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			stdlog.Printf("Disconnected: %s", conn.RemoteAddr())
		},
		OnMessage: func(conn *transport.ServerConn, payload []byte) {
			stdlog.Printf("Message from %s: %d bytes", conn.RemoteAddr(), len(payload))
			if err := conn.Send(payload); err != nil {
				stdlog.Printf("Echo to %s failed: %v", conn.RemoteAddr(), err)
			}
		},
		OnError: func(conn *transport.ServerConn, err error) {
			if conn != nil {
				stdlog.Printf("Error on %s: %v", conn.RemoteAddr(), err)
			} else {
				stdlog.Printf("Error: %v", err)
			}
		},
	})
	if err != nil {
		stdlog.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	stdlog.Printf("Listening on %s", server.Addr())
	stdlog.Printf("Certificate fingerprint: %s", credential.Fingerprint())

	if *advertise {
		advertiser := startAdvertising(server, credential, *name)
		if advertiser != nil {
			defer advertiser.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	if err := server.Stop(); err != nil {
		stdlog.Printf("Error stopping server: %v", err)
	}
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

func startAdvertising(server *transport.Server, credential *cert.Credential, name string) *discovery.Advertiser {
	addr := server.Addr()
	if addr == nil {
		return nil
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		stdlog.Printf("Cannot advertise: %v", err)
		return nil
	}
	port, _ := strconv.Atoi(portStr)

	hostname, _ := os.Hostname()
	instance := "slink-" + hostname
	if name != "" {
		instance = name
	}

	advertiser := discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
	err = advertiser.Advertise(&discovery.ServiceInfo{
		InstanceName: instance,
		Port:         uint16(port),
		Fingerprint:  credential.Fingerprint(),
		Name:         name,
	})
	if err != nil {
		stdlog.Printf("Failed to advertise: %v", err)
		return nil
	}
	stdlog.Printf("Advertising %q on %s.%s", instance, discovery.ServiceType, discovery.Domain)
	return advertiser
}

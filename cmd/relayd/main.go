package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/peerwire/peerwire/pkg/api"
	"github.com/peerwire/peerwire/pkg/banlist"
	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/server"
)

const (
	defaultPort       = 49305
	defaultAPIPort    = 8080
	defaultBanDB      = "./data/bans.db"
	heartbeatInterval = 5 * time.Minute
)

var (
	host      = flag.String("host", "0.0.0.0", "Address to listen on")
	port      = flag.Int("port", defaultPort, "Port to listen on")
	name      = flag.String("name", "relayd", "Server display name")
	accessKey = flag.String("key", "", "Access key clients must present (optional)")
	banDB     = flag.String("bandb", defaultBanDB, "Path to the ban list database")
	apiPort   = flag.Int("apiport", defaultAPIPort, "Admin API port (0 disables the API)")
	apiKey    = flag.String("apikey", "", "Admin API key (optional)")
	tlsCert   = flag.String("tlscert", "", "TLS certificate file (enables TLS with -tlskey)")
	tlsKey    = flag.String("tlskey", "", "TLS key file")
	debug     = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	printBanner()

	config := server.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.Name = *name
	config.AccessKey = *accessKey
	config.Debug = *debug

	if *tlsCert != "" || *tlsKey != "" {
		tlsConfig, err := loadTLS(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load TLS credentials: %v", err)
		}
		config.TLS = tlsConfig
		log.Printf("✓ TLS enabled with certificate %s", *tlsCert)
	}

	if *banDB != "" {
		if err := os.MkdirAll(filepath.Dir(*banDB), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err := banlist.NewSQLiteStore(*banDB)
		if err != nil {
			log.Fatalf("Failed to open ban list database: %v", err)
		}
		defer store.Close()
		config.Bans = store
		log.Printf("✓ Ban list database at %s", *banDB)
	}

	relay := server.New(config)
	relay.Registry().Register(&consoleObserver{})

	if err := relay.Start(); err != nil {
		log.Fatalf("Failed to start relay server: %v", err)
	}

	log.Printf("✓ Relay server %s listening on %s:%d", *name, *host, *port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *apiPort > 0 {
		apiConfig := api.DefaultConfig()
		apiConfig.Port = *apiPort
		if *apiKey != "" {
			apiConfig.APIKeys = map[string]bool{*apiKey: true}
		}

		adminAPI := api.NewServer(relay, apiConfig)
		go func() {
			if err := adminAPI.Start(ctx); err != nil {
				log.Printf("Admin API shutdown error: %v", err)
			}
		}()
		log.Printf("✓ Admin API on port %d", *apiPort)
	}

	go startHeartbeatLoop(relay)

	waitForShutdown(relay, cancel)
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║              peerwire relay server                ║")
	fmt.Println("║       identified client-to-client messaging       ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}

func loadTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("both -tlscert and -tlskey are required for TLS")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// consoleObserver mirrors client activity to the server log.
type consoleObserver struct {
	events.NoopServerListener
}

func (consoleObserver) OnClientConnected(ev events.ClientConnectedEvent) {
	log.Printf("➡️  %s (%s) joined", ev.Client.Name(), ev.Client.MAC())
}

func (consoleObserver) OnClientDisconnected(ev events.ClientDisconnectedEvent) {
	log.Printf("⬅️  %s left (%s)", ev.Client.Name(), ev.Reason)
}

func (consoleObserver) OnClientCommand(ev events.ClientCommandEvent) {
	log.Printf("⚙️  %s ran command: %s ( %s )", ev.Client.Name(), ev.Command, ev.Argument)
}

func startHeartbeatLoop(relay *server.Server) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		stats := relay.Stats()

		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("💓 Heartbeat")
		log.Printf("   Connected clients: %v", stats["connected_clients"])
		log.Printf("   Banned identities: %v", stats["banned_identities"])
		log.Printf("   Frames handled: %v", stats["frames_handled"])
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

func waitForShutdown(relay *server.Server, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()

	if err := relay.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Relay stopped. Goodbye!")
}

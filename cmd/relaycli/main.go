package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peerwire/peerwire/pkg/client"
	"github.com/peerwire/peerwire/pkg/events"
	"github.com/peerwire/peerwire/pkg/transport"
	"github.com/peerwire/peerwire/pkg/wire"
)

var (
	host      = flag.String("host", "127.0.0.1", "Server address")
	port      = flag.Int("port", 49305, "Server port")
	name      = flag.String("name", "", "Display name (required)")
	accessKey = flag.String("key", "", "Server access key (optional)")
	useWS     = flag.Bool("ws", false, "Connect over WebSocket instead of TCP")
	timeout   = flag.Duration("timeout", 10*time.Second, "Handshake timeout")
	debug     = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *name == "" {
		log.Fatal("Error: -name flag is required")
	}

	config := client.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.Name = *name
	config.AccessKey = *accessKey
	config.ConnectTimeout = *timeout
	config.Debug = *debug
	if *useWS {
		config.Dialer = transport.WebSocket{Timeout: *timeout}
	}

	c := client.New(config)
	c.Registry().Register(&consolePrinter{})

	if err := c.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	fmt.Println("Connected. Type a message and press enter to send it.")
	fmt.Println("Commands: /rename <name>, /quit")

	go readInput(c)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	c.Close("client shutting down")
}

func readInput(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "/rename "):
			newName := strings.TrimSpace(strings.TrimPrefix(line, "/rename "))
			if err := c.Rename(newName); err != nil {
				log.Printf("Rename failed: %v", err)
			}
		case line == "/quit":
			c.Close("user quit")
			os.Exit(0)
		default:
			payload := wire.NewPayload()
			payload.WriteText("message", line)
			payload.WriteText("from", c.Name())
			if !c.Send(payload) {
				log.Println("Send failed; message queued or dropped")
			}
		}
	}
}

// consolePrinter prints server traffic to the terminal.
type consolePrinter struct {
	events.NoopClientListener
}

func (consolePrinter) OnServerConnected(ev events.ServerConnectedEvent) {
	log.Printf("✓ Connected to %s", ev.Server.MAC())
}

func (consolePrinter) OnServerDisconnected(ev events.ServerDisconnectedEvent) {
	log.Printf("Disconnected (%s): %s", ev.Reason, ev.Message)
	os.Exit(0)
}

func (consolePrinter) OnServerMessage(ev events.ServerMessageEvent) {
	if text, ok := ev.Payload.GetText("message"); ok {
		from, _ := ev.Payload.GetText("from")
		if from == "" {
			from = "server"
		}
		fmt.Printf("[%s] %s\n", from, text)
		return
	}

	fmt.Printf("payload received with keys: %s\n", strings.Join(allKeys(ev.Payload), ", "))
}

func allKeys(p *wire.Payload) []string {
	var keys []string
	keys = append(keys, p.Keys(wire.NamespaceText)...)
	keys = append(keys, p.Keys(wire.NamespaceBool)...)
	keys = append(keys, p.Keys(wire.NamespaceNumber)...)
	keys = append(keys, p.Keys(wire.NamespaceChars)...)
	keys = append(keys, p.Keys(wire.NamespaceBytes)...)
	keys = append(keys, p.Keys(wire.NamespaceObject)...)
	return keys
}

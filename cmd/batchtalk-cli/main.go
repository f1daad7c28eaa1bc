// ABOUTME: Interactive CLI client for batchtalk conversations with live streaming.
// ABOUTME: Provides readline-style input, optimistic sends, and JWT auth.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/Shameer2006/batchtalk/internal/api"
	"github.com/Shameer2006/batchtalk/internal/client"
)

// getToken returns the JWT token from BATCHTALK_TOKEN env var or
// ~/.config/batchtalk/token file.
func getToken() string {
	// Check env var first
	if token := os.Getenv("BATCHTALK_TOKEN"); token != "" {
		return token
	}

	// Try to read from token file
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "batchtalk", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func main() {
	// Parse command line flags
	server := flag.String("server", "http://localhost:8080", "Server URL")
	account := flag.String("account", "", "Own account address (used to tell own messages apart)")
	flag.Parse()

	token := getToken()
	if token == "" {
		fmt.Fprintln(os.Stderr, "No token. Set BATCHTALK_TOKEN or write ~/.config/batchtalk/token")
		fmt.Fprintln(os.Stderr, "(mint one with: batchtalk token --account <addr>)")
		os.Exit(1)
	}

	fmt.Printf("batchtalk-cli connected to %s\n", *server)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	// Setup context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *server, token, *account); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// cli holds the state of one interactive run.
type cli struct {
	client  *client.Client
	account string

	conversationID string
	peerLabel      string
	outbox         *client.Outbox
	stopSession    context.CancelFunc

	printedMu sync.Mutex
	printed   map[string]bool
}

func run(ctx context.Context, server, token, account string) error {
	c := &cli{
		client:  client.New(server, token),
		account: strings.ToLower(strings.TrimSpace(account)),
		outbox:  client.NewOutbox(),
		printed: make(map[string]bool),
	}
	defer c.closeSession()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		// Print prompt (include peer if a conversation is open)
		if c.peerLabel != "" {
			fmt.Printf("[%s]> ", c.peerLabel)
		} else {
			fmt.Print("> ")
		}

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		if input == "/chats" {
			if err := c.listConversations(ctx); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/open") {
			peer := strings.TrimSpace(strings.TrimPrefix(input, "/open"))
			if peer == "" {
				fmt.Println("Usage: /open <peer-account>")
			} else if err := c.openConversation(ctx, peer); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if input == "/unread" {
			count, err := c.client.TotalUnread(ctx)
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Printf("%d unread across all conversations\n", count)
			}
			fmt.Println()
			continue
		}

		if input == "/read" {
			if err := c.markRead(ctx); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if input == "/typing" {
			if err := c.peerTyping(ctx); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		// Everything else is a message to the open conversation
		if c.conversationID == "" {
			fmt.Println("No conversation open. Use /open <peer-account> first.")
			fmt.Println()
			continue
		}
		c.send(ctx, input)
	}
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /chats         List conversations with unread counts")
	fmt.Println("  /open <peer>   Open (or create) the conversation with a peer")
	fmt.Println("  /read          Mark the open conversation read")
	fmt.Println("  /unread        Show total unread count")
	fmt.Println("  /typing        Check whether the peer is typing")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

// listConversations prints the account's conversations, most recent first.
func (c *cli) listConversations(ctx context.Context) error {
	summaries, err := c.client.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No conversations yet. Use /open <peer-account>.")
		return nil
	}

	for _, summary := range summaries {
		label := summary.Peer.Name
		if summary.Peer.Role != "" {
			label += " (" + summary.Peer.Role + ")"
		}
		line := fmt.Sprintf("  %s", label)
		if summary.Unread > 0 {
			line += color.YellowString(" [%d unread]", summary.Unread)
		}
		if summary.LastMessage != nil {
			preview := summary.LastMessage.Body
			if len(preview) > 40 {
				preview = preview[:40] + "…"
			}
			line += color.HiBlackString("  %s", preview)
		}
		fmt.Println(line)
	}
	return nil
}

// openConversation opens the conversation with peer and starts its live stream.
func (c *cli) openConversation(ctx context.Context, peer string) error {
	conv, err := c.client.OpenConversation(ctx, peer, nil)
	if err != nil {
		return err
	}

	c.closeSession()
	c.conversationID = conv.ID
	c.peerLabel = shortLabel(peer)
	c.outbox = client.NewOutbox()
	c.printedMu.Lock()
	c.printed = make(map[string]bool)
	c.printedMu.Unlock()

	// Opening a conversation reads it
	if err := c.client.MarkRead(ctx, conv.ID); err != nil {
		fmt.Printf("[warn] mark read: %v\n", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	c.stopSession = cancel

	session := client.NewSession(c.client, conv.ID, c.onMessage,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() {
		_ = session.Run(sessionCtx)
	}()

	fmt.Printf("Opened conversation with %s\n", peer)
	return nil
}

// onMessage renders a streamed or resynced message and reconciles own sends.
func (c *cli) onMessage(msg api.Message) {
	if msg.Sender == c.account {
		// The read flag on an own message is flipped by the peer's
		// mark-as-read; that observation, arriving via stream or resync,
		// is the only signal that advances an entry past sent.
		if msg.Read {
			c.outbox.MarkRead(msg.ID)
		}
		return
	}

	// Read-flag updates re-deliver a message already on screen
	c.printedMu.Lock()
	already := c.printed[msg.ID]
	c.printed[msg.ID] = true
	c.printedMu.Unlock()
	if already {
		return
	}

	fmt.Printf("\r%s %s\n", color.CyanString("%s:", shortLabel(msg.Sender)), msg.Body)
}

// send stages the message optimistically and reconciles with the server.
func (c *cli) send(ctx context.Context, body string) {
	localID := c.outbox.Stage(body)

	result, err := c.client.Send(ctx, c.conversationID, body, "")
	if err != nil {
		draft := c.outbox.Fail(localID)
		fmt.Printf("[error] send failed: %v\n", err)
		if draft != "" {
			fmt.Printf("[draft restored] %s\n", draft)
		}
		return
	}

	c.outbox.Confirm(localID, result.Message.ID)
	fmt.Println(color.HiBlackString("  ✓ sent"))
}

func (c *cli) markRead(ctx context.Context) error {
	if c.conversationID == "" {
		fmt.Println("No conversation open.")
		return nil
	}
	if err := c.client.MarkRead(ctx, c.conversationID); err != nil {
		return err
	}
	fmt.Println("Marked read.")
	return nil
}

func (c *cli) peerTyping(ctx context.Context) error {
	if c.conversationID == "" {
		fmt.Println("No conversation open.")
		return nil
	}
	typing, err := c.client.PeerTyping(ctx, c.conversationID)
	if err != nil {
		return err
	}
	if typing {
		fmt.Println("Peer is typing…")
	} else {
		fmt.Println("Peer is not typing.")
	}
	return nil
}

func (c *cli) closeSession() {
	if c.stopSession != nil {
		c.stopSession()
		c.stopSession = nil
	}
}

// shortLabel shortens long account addresses for display.
func shortLabel(account string) string {
	if len(account) <= 12 {
		return account
	}
	return account[:6] + "…" + account[len(account)-4:]
}

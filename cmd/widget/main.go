package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/widget"
)

// Interactive terminal chat widget against a running server. Mirrors
// what the embedded storefront widget does: optimistic echo, background
// polling for operator replies, session end on exit.
func main() {
	baseURL := envOr("WIDGET_BASE_URL", "http://localhost:3000")
	visitorID := envOr("WIDGET_VISITOR_ID", "visitor-"+uuid.NewString()[:8])

	var subject *widget.SubjectContext
	if title := os.Getenv("WIDGET_SUBJECT_TITLE"); title != "" {
		subject = &widget.SubjectContext{
			SKU:   os.Getenv("WIDGET_SUBJECT_SKU"),
			Title: title,
		}
		fmt.Sscanf(os.Getenv("WIDGET_SUBJECT_PRICE"), "%f", &subject.Price)
	}

	client := widget.NewClient(baseURL, visitorID, widget.WithSubject(subject))

	// Polling surfaces operator replies that arrive between sends.
	seen := 0
	client.OnUpdate = func(messages []widget.Message) {
		for ; seen < len(messages); seen++ {
			printMessage(messages[seen])
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client.StartPolling(ctx)

	color.Cyan("🛠  HupperMotors Support Chat (visitor %s)", visitorID)
	color.Cyan("Type a message, or /quit to end the session.\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			break
		}

		reply, err := client.Send(ctx, text)
		if err != nil {
			color.Red("send failed: %v", err)
			continue
		}
		if reply == nil {
			color.Yellow("(forwarded to an operator, replies will appear here)")
		}
	}

	if err := client.Close(context.Background()); err != nil {
		color.Red("close failed: %v", err)
	}
	color.Cyan("Session ended. Bye!")
}

func printMessage(m widget.Message) {
	switch m.Role {
	case "assistant":
		color.Green("assistant: %s", m.Content)
	case "operator":
		color.Magenta("operator:  %s", m.Content)
	default:
		color.White("you:       %s", m.Content)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

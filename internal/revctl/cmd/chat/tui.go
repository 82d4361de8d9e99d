package chat

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/mitchellh/go-wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ANSI color helpers using raw escape codes — no OSC queries, no termenv
// auto-detect, so output stays copy-paste friendly.
var (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorVioletANSI = "\033[38;5;135m"
	colorBlueANSI   = "\033[38;5;39m"
	colorGrayANSI   = "\033[38;5;241m"
	colorRedANSI    = "\033[38;5;196m"
)

func getTermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func printWelcomeBanner(client *Client) {
	w := getTermWidth()
	sep := colorVioletANSI + strings.Repeat("-", w) + colorReset

	fmt.Println(sep)
	fmt.Printf("%s%s Reverie Chat %s\n", colorBold, colorVioletANSI, colorReset)
	fmt.Println()
	fmt.Printf("  Server:  %s\n", client.BaseURL)
	if client.SessionID != "" {
		fmt.Printf("  Session: %s\n", client.SessionID)
	}
	fmt.Println()
	fmt.Printf("%sTips:%s\n", colorVioletANSI+colorBold, colorReset)
	fmt.Println("  Type a message and press Enter to send")
	fmt.Println("  /quit   - exit")
	fmt.Println("  Ctrl+C  - exit")
	fmt.Println(sep)
	fmt.Println()
}

func printSeparator() {
	w := getTermWidth() - 2
	if w < 20 {
		w = 20
	}
	fmt.Printf("%s%s%s\n", colorGrayANSI, strings.Repeat("-", w), colorReset)
}

func printStatus(ev *Event) {
	label := ev.Action
	switch ev.Phase {
	case "active":
		fmt.Printf("%s… %s: %s%s\n", colorDim, label, ev.Query, colorReset)
	case "complete":
		fmt.Printf("%s✓ %s done%s\n", colorDim, label, colorReset)
	case "error":
		msg := ev.Content
		if w := getTermWidth() - 6; w > 20 {
			msg = wordwrap.WrapString(msg, uint(w))
		}
		fmt.Printf("%s✗ %s failed: %s%s\n", colorDim, label, msg, colorReset)
	}
}

func renderMarkdownToTerminal(content string, width int) string {
	if width <= 0 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithColorProfile(termenv.ANSI256),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func readLine(prompt string, in *bufio.Scanner) (string, bool) {
	fmt.Print(prompt)
	if in.Scan() {
		return in.Text(), true
	}
	return "", false
}

// RunTUI drives the interactive loop with direct terminal output. No
// alt-screen mode, so replies can be freely selected and copied.
func RunTUI(client *Client) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\n\n%sGoodbye!%s\n\n", colorDim, colorReset)
		os.Exit(0)
	}()

	printWelcomeBanner(client)

	scanner := bufio.NewScanner(os.Stdin)
	prompt := colorVioletANSI + colorBold + "> " + colorReset

	for {
		input, ok := readLine(prompt, scanner)
		if !ok {
			fmt.Printf("\n%sGoodbye!%s\n\n", colorDim, colorReset)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			fmt.Printf("%sGoodbye!%s\n\n", colorDim, colorReset)
			return nil
		}

		printSeparator()
		fmt.Printf("%s%syou%s\n%s%s%s\n", colorBold, colorBlueANSI, colorReset, colorBlueANSI, input, colorReset)

		reply, err := client.Chat(context.Background(), input, printStatus)
		printSeparator()
		if err != nil {
			fmt.Printf("%s%sError: %v%s\n", colorBold, colorRedANSI, err, colorReset)
			continue
		}

		fmt.Printf("%s%sreverie%s\n", colorBold, colorVioletANSI, colorReset)
		fmt.Println(renderMarkdownToTerminal(reply, getTermWidth()-4))
		fmt.Println()
	}
}

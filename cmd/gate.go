package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/otherjamesbrown/recents/config"
)

// TerminalGate answers call-log permission requests from configuration,
// asking on the terminal when writes are set to "prompt".
type TerminalGate struct {
	Read      bool
	WriteMode string

	// AssumeYes grants prompted writes without asking (--yes).
	AssumeYes bool

	// Prompt is the question shown before a write.
	Prompt string

	In  io.Reader
	Out io.Writer

	// IsTerminal reports whether In is interactive. Defaults to checking stdin.
	IsTerminal func() bool
}

// NewTerminalGate builds a gate over stdin/stderr from cfg.
func NewTerminalGate(cfg *config.CLIConfig, assumeYes bool) *TerminalGate {
	return &TerminalGate{
		Read:      cfg.Permissions.ReadCallLog,
		WriteMode: cfg.Permissions.WriteCallLog,
		AssumeYes: assumeYes,
		In:        os.Stdin,
		Out:       os.Stderr,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// HasReadAccess reports the configured read permission.
func (g *TerminalGate) HasReadAccess() bool {
	return g.Read
}

// RequestWriteAccess grants, denies or asks. Without a terminal a prompt is
// a denial unless AssumeYes is set.
func (g *TerminalGate) RequestWriteAccess(ctx context.Context) bool {
	switch g.WriteMode {
	case config.WriteAllow:
		return true
	case config.WriteDeny:
		return false
	}

	if g.AssumeYes {
		return true
	}
	if g.IsTerminal != nil && !g.IsTerminal() {
		return false
	}

	prompt := g.Prompt
	if prompt == "" {
		prompt = "Allow changes to the call history?"
	}

	answer := make(chan bool, 1)
	go func() {
		fmt.Fprintf(g.Out, "%s (y/N): ", prompt)
		line, _ := bufio.NewReader(g.In).ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))
		answer <- line == "y" || line == "yes"
	}()

	select {
	case ok := <-answer:
		return ok
	case <-ctx.Done():
		return false
	}
}

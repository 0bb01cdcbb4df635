// Package console is the interactive chat surface of the copilot. It reads
// operator lines from stdin and prints the assistant's final answers.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
)

// REPL is the interactive console host. It is disabled by default so the
// process can run headless next to the HTTP API.
type REPL struct {
	Enabled      bool                         `config:"CONSOLE_ENABLED" default:"false"`
	Logger       *log.Logger                  `resolve:""`
	Orchestrator usecases.ToolUseOrchestrator `resolve:""`

	in  io.Reader
	out io.Writer
}

// Run reads lines until EOF, "exit"/"quit" or context cancellation. Every
// submitted line produces some printed text, an answer or an error line.
func (r *REPL) Run(ctx context.Context) error {
	if !r.Enabled {
		<-ctx.Done()
		return nil
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	if r.out == nil {
		r.out = os.Stdout
	}

	conversation := domain.NewConversation()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(r.out, "EPM copilot ready. Type 'exit' to leave.")
	for {
		fmt.Fprint(r.out, "You> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
				return nil
			}

			answer, err := r.Orchestrator.Execute(ctx, conversation, line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				continue
			}
			if answer == "" {
				answer = "(no answer)"
			}
			fmt.Fprintf(r.out, "Copilot> %s\n", answer)
		}
	}
}

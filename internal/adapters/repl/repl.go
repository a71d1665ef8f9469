package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"commercial-docs/internal/adapters/cli"
	"commercial-docs/internal/app"
)

var errExit = errors.New("exit")

// Run starts the interactive REPL loop. Commands are the one-shot CLI
// commands, with an optional leading slash. Commands that take document lines
// prompt for them instead of reading JSON.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "Commercial documents")
	fmt.Fprintln(out, "Type /help for commands, /new <type> to create a document, /exit to quit.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	s := &session{svc: svc, reader: reader, out: out}
	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if derr := s.dispatch(ctx, input); derr != nil {
				if errors.Is(derr, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", derr)
			}
		}
		if err != nil {
			return
		}
	}
}

type session struct {
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
}

func (s *session) dispatch(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "exit", "quit", "q":
		return errExit

	case "help", "h":
		fmt.Fprintln(s.out, cli.Usage)
		fmt.Fprintln(s.out, "  new <type> [party-id]          create a document interactively")
		return nil

	case "new":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /new <type> [party-id]")
			return nil
		}
		return s.newDocument(ctx, args)

	case "amend", "credit-note":
		if len(args) < 1 {
			fmt.Fprintf(s.out, "Usage: /%s <id>\n", cmd)
			return nil
		}
		lines, ok := s.readLines()
		if !ok {
			return nil
		}
		return cli.Run(ctx, s.svc, []string{cmd, args[0]}, linesJSON(lines), s.out)

	case "save", "totals":
		fmt.Fprintln(s.out, "Use /new <type> to enter a document interactively.")
		return nil
	}
	return cli.Run(ctx, s.svc, tokens, nil, s.out)
}

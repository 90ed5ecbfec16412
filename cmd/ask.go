package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/opsdesk/deskmate/internal/app"
	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/pipeline"
)

// runAsk answers questions. With arguments it answers the joined
// arguments once and exits; without, it enters an interactive loop.
func runAsk(ctx context.Context, cfg *config.Config, args []string) error {
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	user := uuid.New()

	if len(args) > 0 {
		question := strings.Join(args, " ")
		answer, err := a.Pipeline.Ask(ctx, user, question)
		if err != nil {
			return err
		}
		printAnswer(os.Stdout, answer)
		return nil
	}

	return interactiveLoop(ctx, a, user, os.Stdin, os.Stdout)
}

// interactiveLoop reads questions line by line until EOF or /exit.
// Each session gets a fresh user identity, so conversation history is
// scoped to the running process.
func interactiveLoop(ctx context.Context, a *app.App, user uuid.UUID, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "deskmate v%s - ask away (Ctrl+D or /exit to quit)\n", AppVersion)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			a.History.Clear(user)
			fmt.Fprintln(out, "conversation cleared")
			continue
		}

		answer, err := a.Pipeline.Ask(ctx, user, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		printAnswer(out, answer)
	}

	return scanner.Err()
}

func printAnswer(w io.Writer, a *pipeline.Answer) {
	fmt.Fprintln(w, a.Answer)
	if a.Followup != "" {
		fmt.Fprintf(w, "\nFollow-up: %s\n", a.Followup)
	}
	fmt.Fprintf(w, "\n[%s via %s, confidence %.2f]\n",
		a.Routing.Department, a.Routing.Method, a.Routing.Confidence)
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"tiles/internal/daemon"
)

// chatter is the slice of daemon.Client the REPL needs.
type chatter interface {
	Chat(ctx context.Context, model string, msgs []daemon.Message) (string, error)
}

// chat reads prompts from in until EOF or "exit" and prints each reply.
// Every turn is sent on its own; the daemon keeps any conversation state.
func chat(ctx context.Context, c chatter, model string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Type your message, or 'exit' to leave.")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, ">> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		input := strings.TrimSpace(sc.Text())
		switch input {
		case "":
			continue
		case "exit":
			fmt.Fprintln(out, "Exiting interactive mode")
			return nil
		}
		reply, err := c.Chat(ctx, model, []daemon.Message{{Role: "user", Content: input}})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, ">> failed to respond: %v\n", err)
			continue
		}
		fmt.Fprintf(out, ">> %s\n", reply)
	}
}

package inference

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"github.com/pkg/errors"
)

// ExitCommand ends the interactive loop.
const ExitCommand = "exit"

const accentColor = "#705090"

// REPL reads messages from r, one per line, and writes the likelihood of each to w. It stops on
// "exit" or at the end of r; blank lines are skipped, and a last line without a newline is still
// scored. Colors are only used when w is a terminal.
func REPL(r io.Reader, w io.Writer, c *Classifier) error {
	out := termenv.NewOutput(w)
	in := bufio.NewReader(r)

	if _, err := fmt.Fprintln(w, "Enter messages to estimate likelihood that Ravenholdt said:"); err != nil {
		return errors.Wrap(err, "failed to write prompt")
	}
	for {
		line, readErr := in.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return errors.Wrap(readErr, "failed to read message")
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == ExitCommand:
			return nil
		case line == "":
			// Blank line; only a real end of input stops the loop.
		default:
			if err := reply(out, w, c, line); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

func reply(out *termenv.Output, w io.Writer, c *Classifier, line string) error {
	p, err := c.Probability(line)
	if errors.Is(err, ErrMalformed) {
		_, err = fmt.Fprintln(w, out.String("Message is not valid UTF-8, skipped.").Faint())
		return errors.Wrap(err, "failed to write reply")
	}
	if err != nil {
		return err
	}
	pct := out.String(fmt.Sprintf("%.2f%%", 100*p)).Foreground(out.Color(accentColor)).Bold()
	_, err = fmt.Fprintf(w, "Likelihood that Ravenholdt said ^: %s\n", pct)
	return errors.Wrap(err, "failed to write reply")
}

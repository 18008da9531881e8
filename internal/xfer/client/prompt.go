package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user a yes/no or free-text question and returns
// the trimmed answer. Confirm/Rename are the two shapes the sink
// pipeline and orchestrator need (spec §4.6 step 4, §4.6.1 step 3).
//
// Grounded on the interactive bufio.Scanner-over-os.Stdin prompt loop
// seen in the pack's temaune502-LTD2 CLI, adapted from a command
// dispatcher into the two narrow confirm/rename prompts this client
// needs.
type Prompter interface {
	// Confirm asks a yes/no question. An empty line or "y"/"yes"
	// (case-insensitive) means yes.
	Confirm(question string) bool
	// Rename asks for a replacement name. An empty line means the
	// user declined.
	Rename(question string) string
}

// TerminalPrompter reads answers from an io.Reader (normally os.Stdin)
// and writes prompts to an io.Writer (normally os.Stdout).
type TerminalPrompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewTerminalPrompter builds a TerminalPrompter over in/out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *TerminalPrompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [Y/n] ", question)
	if !p.scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

func (p *TerminalPrompter) Rename(question string) string {
	fmt.Fprintf(p.out, "%s ", question)
	if !p.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(p.scanner.Text())
}

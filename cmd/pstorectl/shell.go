package main

import (
	"bufio"
	"io"
	"strings"
)

// shell wraps line-oriented input/output for the REPL. Adapted from the
// statement-reading shell this CLI's ancestor used for SQL input: this
// domain's commands are always single lines, so the multi-line
// continuation-prompt and quote-tracking logic that shell served there has
// no counterpart here, but the same history ring and reader/writer shape
// carries over.
type shell struct {
	reader *bufio.Reader
	output io.Writer

	prompt string

	history      []string
	historyIndex int
	maxHistory   int
}

func newShell(input io.Reader, output io.Writer) *shell {
	return &shell{
		reader:     bufio.NewReader(input),
		output:     output,
		prompt:     "pstorectl> ",
		maxHistory: 1000,
	}
}

// readLine reads a single line, stripping trailing whitespace, and reports
// whether EOF was reached.
func (s *shell) readLine() (string, bool) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return strings.TrimRight(line, " \t\r\n"), true
	}
	return strings.TrimRight(line, " \t\r\n"), false
}

func (s *shell) addHistory(cmd string) {
	if len(s.history) > 0 && s.history[len(s.history)-1] == cmd {
		return
	}
	s.history = append(s.history, cmd)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.historyIndex = len(s.history)
}

func (s *shell) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

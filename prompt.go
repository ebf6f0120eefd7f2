package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt asks the user on the terminal. When stdin is not a TTY (scripts,
// scheduled runs) every question is answered with its default and nothing
// is read.
type Prompt struct {
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
}

func NewPrompt(assumeYes bool) *Prompt {
	return &Prompt{
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		assumeYes:   assumeYes,
	}
}

func (p *Prompt) readLine() (string, bool) {
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (p *Prompt) Confirm(message string) bool {
	if p.assumeYes {
		return true
	}
	if !p.interactive {
		fmt.Fprintf(p.out, "%v [y/N] stdin is not a terminal, use -y to confirm\n", message)
		return false
	}
	for {
		fmt.Fprintf(p.out, "%v [y/N] ", message)
		resp, ok := p.readLine()
		if !ok {
			return false
		}
		switch strings.ToLower(resp) {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Fprintln(p.out, "Please answer with 'y' or 'n'.")
		}
	}
}

// Name lets the user edit the suggested backup name, an empty answer keeps
// the suggestion.
func (p *Prompt) Name(suggestion string) (string, bool) {
	if p.assumeYes || !p.interactive {
		return suggestion, true
	}
	fmt.Fprintf(p.out, "Backup name [%v]: ", suggestion)
	resp, ok := p.readLine()
	if !ok {
		return "", false
	}
	if resp == "" {
		return suggestion, true
	}
	return resp, true
}

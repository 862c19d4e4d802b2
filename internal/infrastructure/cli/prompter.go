package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
	"github.com/doeshing/opsguard/internal/ports"
)

// Prompter presents confirmation requests on the terminal. It uses an
// interactive form when stdin is a TTY and falls back to line input otherwise.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	lines       chan lineResult
}

type lineResult struct {
	text string
	err  error
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	interactive := false
	if in == nil {
		in = os.Stdin
		fd := os.Stdin.Fd()
		interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Present implements ports.PromptRenderer.
func (p *Prompter) Present(ctx context.Context, req domain.ConfirmationRequest, resolve func(domain.Decision)) error {
	render.Confirmation(p.out, req)
	var approved bool
	var err error
	if p.interactive {
		approved, err = p.askForm(ctx, req)
	} else {
		approved, err = p.askLine(ctx, req)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if approved {
		resolve(domain.DecisionApproved)
	} else {
		resolve(domain.DecisionDenied)
	}
	return nil
}

func (p *Prompter) askForm(ctx context.Context, req domain.ConfirmationRequest) (bool, error) {
	var approved bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Execute this %s risk operation?", req.Assessment.Level)).
				Affirmative("Execute").
				Negative("Cancel").
				Value(&approved),
		),
	).WithShowHelp(false)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return approved, nil
}

// askLine reads one answer. High and critical operations need the word "yes";
// medium ones accept y.
func (p *Prompter) askLine(ctx context.Context, req domain.ConfirmationRequest) (bool, error) {
	explicit := req.Assessment.Level.AtLeast(domain.RiskHigh)
	if explicit {
		fmt.Fprint(p.out, "Type 'yes' to execute (anything else cancels): ")
	} else {
		fmt.Fprint(p.out, "Execute? [y/N]: ")
	}

	line, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	if explicit {
		return line == "yes", nil
	}
	return line == "y" || line == "yes", nil
}

// readLine returns the next input line or ctx's error. A read abandoned by
// ctx stays pending and its line is delivered to the next call.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if p.lines == nil {
		p.lines = make(chan lineResult, 1)
		go p.pump()
	}
	select {
	case r, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return r.text, r.err
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	}
}

func (p *Prompter) pump() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		if err != nil && text != "" {
			err = nil
		}
		p.lines <- lineResult{text: text, err: err}
		if err != nil {
			return
		}
	}
}

var _ ports.PromptRenderer = (*Prompter)(nil)

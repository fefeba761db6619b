package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads whole lines from one buffered reader so no typed input is
// lost between prompts.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// pick, when set, is used for file selection when the user types "/".
	pick func(dir string) (string, error)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, pick: SelectFileWithFzf}
}

// Line displays prompt and returns the trimmed line the user typed.
func (p *prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PathOrFzf reads a path; a lone "/" opens fzf over dir instead. When fzf is
// unavailable or cancelled the prompt is shown again.
func (p *prompter) PathOrFzf(prompt, dir string) (string, error) {
	input, err := p.Line(prompt)
	if err != nil || input != "/" {
		return input, err
	}
	if p.pick != nil {
		if sel, err := p.pick(dir); err == nil && sel != "" {
			fmt.Fprintf(p.out, " [fzf] %s\n", sel)
			return sel, nil
		}
	}
	return p.Line(prompt)
}

// Confirm asks a y/N question.
func (p *prompter) Confirm(prompt string) bool {
	answer, err := p.Line(prompt)
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

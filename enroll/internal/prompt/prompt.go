package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	GuideURL        = "https://github.com/poscat0x04/wgcf-teams/blob/master/guide.md"
	teamPlaceholder = "<YOUR_ORGANIZATION>"
)

var (
	instructionStyle = lipgloss.NewStyle().Bold(true)
	hintStyle        = lipgloss.NewStyle().Faint(true)
)

// Prompter reads operator input line by line. The key and the token share
// one buffered reader so nothing pasted ahead of time is lost.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *Prompter) PrivateKey() (string, error) {
	fmt.Fprintln(p.out, instructionStyle.Render("Please paste your WireGuard private key and press enter:"))
	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("read private key: %w", err)
	}
	return line, nil
}

// AccessToken asks for the JWT shown after logging in to
// https://<team>.cloudflareaccess.com/warp. Input is not echoed on a terminal.
func (p *Prompter) AccessToken(team string) (string, error) {
	fmt.Fprintln(p.out, instructionStyle.Render(fmt.Sprintf(
		"Please open %s, log in to WARP, paste the JWT token here and press enter.", LoginURL(team))))
	fmt.Fprintln(p.out, hintStyle.Render(fmt.Sprintf(
		"For detailed instructions on where to find the JWT token after login, see %s.", GuideURL)))

	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read access token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	return line, nil
}

func LoginURL(team string) string {
	team = strings.TrimSpace(team)
	if team == "" {
		team = teamPlaceholder
	}
	return "https://" + team + ".cloudflareaccess.com/warp"
}

// readLine returns the next line without its terminator. A final line
// without a newline is accepted; EOF before any input is an error.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

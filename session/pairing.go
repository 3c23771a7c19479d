package session

import (
	"chat-ingest/domain"
	"fmt"
	"io"

	"github.com/gookit/color"
)

// ConsolePresenter prints pairing material so an operator can link the session.
type ConsolePresenter struct {
	out     io.Writer
	colours bool
}

func NewConsolePresenter(out io.Writer, colours bool) *ConsolePresenter {
	return &ConsolePresenter{out: out, colours: colours}
}

func (p *ConsolePresenter) Present(update domain.ConnectionUpdate) {
	if update.PairingCode != "" {
		p.print("Pairing code", update.PairingCode)
	}
	if update.QR != "" {
		p.print("Scan this QR payload with the companion app", update.QR)
	}
}

func (p *ConsolePresenter) print(title, material string) {
	header := fmt.Sprintf("  ====== %s ======", title)
	if p.colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	_, _ = fmt.Fprintf(p.out, "%s\n%s\n", header, material)
}

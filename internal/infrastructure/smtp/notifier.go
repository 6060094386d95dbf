package smtp

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/internal/config"
)

// DefaultSubject is the subject of every code mail.
const DefaultSubject = "Verification code"

// Notifier delivers verification codes as a text and HTML mail.
type Notifier struct {
	dialer  *gomail.Dialer
	from    string
	subject string

	// sender replaces dialing the server when set.
	sender gomail.Sender
}

// NewNotifier returns a goReset.Notifier sending through cfg.
func NewNotifier(cfg config.SMTP) *Notifier {
	return &Notifier{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: DefaultSubject,
	}
}

var _ goReset.Notifier = (*Notifier)(nil)

// SendCode mails msg.Code to msg.To. gomail has no context support, so a
// context already done is the only cancellation honoured.
func (n *Notifier) SendCode(ctx context.Context, msg goReset.CodeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return fmt.Errorf("invalid recipient %q", msg.To)
	}

	m := n.message(msg)

	var err error
	if n.sender != nil {
		err = gomail.Send(n.sender, m)
	} else {
		err = n.dialer.DialAndSend(m)
	}
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *Notifier) message(msg goReset.CodeMessage) *gomail.Message {
	minutes := int(msg.ExpiresIn.Round(time.Minute) / time.Minute)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", n.subject)
	m.SetBody("text/plain", fmt.Sprintf("Your verification code is: %s\r\nIt expires in %d minutes.\r\n", msg.Code, minutes))
	m.AddAlternative("text/html", fmt.Sprintf("<p>Your verification code is: <b>%s</b></p><p>It expires in %d minutes.</p>",
		html.EscapeString(msg.Code), minutes))
	return m
}

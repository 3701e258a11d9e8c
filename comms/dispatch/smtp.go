package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"cdr.dev/slog"

	"github.com/commsd/commsd/comms"
)

var (
	ErrNoFromAddress  = xerrors.New("no 'from' address defined")
	ErrNoToAddress    = xerrors.New("no 'to' address(es) defined")
	ErrNoSmarthost    = xerrors.New("smarthost host/port is not defined")
	ErrNoHello        = xerrors.New("'hello' not defined")
	ErrTLSUnsupported = xerrors.New("implicit TLS (port 465) is not currently supported")
)

// SMTPConfig configures the SMTP transport. All values are passed in
// explicitly; nothing is read from the environment mid-dispatch.
type SMTPConfig struct {
	// Host and Port locate the smarthost.
	Host string
	Port string
	// Hello is the hostname sent in the HELO/EHLO handshake.
	Hello string
	// From is the envelope sender used when a message carries no
	// from-address of its own.
	From string
	// Username/Password enable SASL auth when the server advertises it.
	Username string
	Password string
}

// SMTPNotifier delivers EmailMessages over SMTP: multipart/alternative body,
// quoted-printable parts, plaintext first and HTML last per RFC 2046 §5.1.4.
type SMTPNotifier struct {
	cfg SMTPConfig
	log slog.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, log slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, log: log}
}

func (s *SMTPNotifier) Send(ctx context.Context, msg Message, _ *comms.Recipient) error {
	em, ok := msg.(*EmailMessage)
	if !ok {
		return xerrors.Errorf("smtp transport cannot deliver %T", msg)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if s.cfg.Host == "" || s.cfg.Port == "" {
		return ErrNoSmarthost
	}
	if s.cfg.Port == "465" {
		return ErrTLSUnsupported
	}
	hello := s.cfg.Hello
	if hello == "" {
		return ErrNoHello
	}

	from, err := s.fromAddr(em)
	if err != nil {
		return err
	}
	to, err := s.toAddrs(em)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return xerrors.Errorf("establish connection to server: %w", err)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			s.log.Warn(ctx, "failed to close connection", slog.Error(cerr))
		}
		return xerrors.Errorf("create client: %w", err)
	}
	defer func() {
		if err := c.Quit(); err != nil {
			s.log.Warn(ctx, "failed to close SMTP connection", slog.Error(err))
		}
	}()

	if err := c.Hello(hello); err != nil {
		return xerrors.Errorf("server handshake: %w", err)
	}

	if s.cfg.Username != "" {
		if ok, mechs := c.Extension("AUTH"); ok {
			auth, err := s.auth(mechs)
			if err != nil {
				return xerrors.Errorf("find auth mechanism: %w", err)
			}
			if auth != nil {
				if err := c.Auth(auth); err != nil {
					return xerrors.Errorf("auth: %w", err)
				}
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return xerrors.Errorf("sender identification: %w", err)
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return xerrors.Errorf("recipient designation: %w", err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return xerrors.Errorf("message transmission: %w", err)
	}
	defer wc.Close()

	if err := s.writeMessage(wc, em, from, to); err != nil {
		return err
	}
	return nil
}

func (s *SMTPNotifier) writeMessage(wc interface{ Write([]byte) (int, error) }, em *EmailMessage, from string, to []string) error {
	hdr := &bytes.Buffer{}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	_, _ = fmt.Fprintf(hdr, "From: %s\r\n", from)
	_, _ = fmt.Fprintf(hdr, "To: %s\r\n", strings.Join(to, ", "))
	if len(em.CC) > 0 {
		_, _ = fmt.Fprintf(hdr, "Cc: %s\r\n", joinAddresses(em.CC))
	}
	if len(em.ReplyTo) > 0 {
		_, _ = fmt.Fprintf(hdr, "Reply-To: %s\r\n", joinAddresses(em.ReplyTo))
	}
	_, _ = fmt.Fprintf(hdr, "Subject: %s\r\n", em.Subject)
	_, _ = fmt.Fprintf(hdr, "Message-Id: %s@%s\r\n", uuid.NewString(), s.hostname())
	_, _ = fmt.Fprintf(hdr, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(hdr, "Content-Type: multipart/alternative; boundary=%s\r\n", mw.Boundary())
	_, _ = fmt.Fprintf(hdr, "MIME-Version: 1.0\r\n\r\n")
	if _, err := wc.Write(hdr.Bytes()); err != nil {
		return xerrors.Errorf("write headers: %w", err)
	}

	if em.TextBody != "" {
		if err := writePart(mw, "text/plain; charset=UTF-8", em.TextBody); err != nil {
			return err
		}
	}
	// Preferred body placed last per RFC 2046.
	if em.HTMLBody != "" {
		if err := writePart(mw, "text/html; charset=UTF-8", em.HTMLBody); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return xerrors.Errorf("close multipart writer: %w", err)
	}
	if _, err := wc.Write(body.Bytes()); err != nil {
		return xerrors.Errorf("write body buffer: %w", err)
	}
	return nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	w, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Transfer-Encoding": {"quoted-printable"},
		"Content-Type":              {contentType},
	})
	if err != nil {
		return xerrors.Errorf("create part for %s: %w", contentType, err)
	}
	qw := quotedprintable.NewWriter(w)
	if _, err := qw.Write([]byte(content)); err != nil {
		return xerrors.Errorf("write %s part: %w", contentType, err)
	}
	if err := qw.Close(); err != nil {
		return xerrors.Errorf("close %s part: %w", contentType, err)
	}
	return nil
}

// auth picks a SASL mechanism from the server's advertised list.
func (s *SMTPNotifier) auth(mechs string) (smtp.Auth, error) {
	for _, mech := range strings.Fields(mechs) {
		switch mech {
		case sasl.Plain:
			return &saslAuth{client: sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)}, nil
		case sasl.Login:
			return &saslAuth{client: sasl.NewLoginClient(s.cfg.Username, s.cfg.Password)}, nil
		}
	}
	return nil, xerrors.Errorf("no supported auth mechanism in %q", mechs)
}

// saslAuth adapts a sasl.Client to net/smtp's Auth interface.
type saslAuth struct {
	client sasl.Client
}

func (a *saslAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return a.client.Start()
}

func (a *saslAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return a.client.Next(fromServer)
	}
	return nil, nil
}

func (s *SMTPNotifier) fromAddr(em *EmailMessage) (string, error) {
	from := em.From.Address
	if from == "" {
		from = s.cfg.From
	}
	if from == "" {
		return "", ErrNoFromAddress
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return "", xerrors.Errorf("parse 'from' address: %w", err)
	}
	return from, nil
}

func (s *SMTPNotifier) toAddrs(em *EmailMessage) ([]string, error) {
	var out []string
	for _, set := range [][]comms.Address{em.To, em.CC, em.BCC} {
		for _, addr := range set {
			if _, err := mail.ParseAddress(addr.Address); err != nil {
				return nil, xerrors.Errorf("parse 'to' address %q: %w", addr.Address, err)
			}
			out = append(out, addr.Address)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoToAddress
	}
	return out, nil
}

func (*SMTPNotifier) hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

func joinAddresses(addrs []comms.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Address)
	}
	return strings.Join(parts, ", ")
}

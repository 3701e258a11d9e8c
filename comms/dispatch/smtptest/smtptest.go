// Package smtptest runs an in-process SMTP server that captures delivered
// messages for assertions.
package smtptest

import (
	"io"
	"net"
	"sync"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/xerrors"
)

// Config controls which SASL mechanisms the mock server advertises and which
// credentials it accepts.
type Config struct {
	AuthMechanisms   []string
	AcceptedUsername string
	AcceptedPassword string
}

// Message is one captured delivery.
type Message struct {
	AuthMech string
	Username string
	Password string
	From     string
	To       []string
	Contents string
}

// Backend captures messages delivered to the mock server.
type Backend struct {
	cfg Config

	mu   sync.Mutex
	last *Message
}

func NewBackend(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// LastMessage returns the most recently completed delivery, or nil.
func (b *Backend) LastMessage() *Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b, msg: &Message{}}, nil
}

type session struct {
	backend *Backend
	msg     *Message
}

func (s *session) AuthMechanisms() []string {
	return s.backend.cfg.AuthMechanisms
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, xerrors.Errorf("unsupported mechanism %q", mech)
	}
	return sasl.NewPlainServer(func(_, username, password string) error {
		s.msg.AuthMech = mech
		s.msg.Username = username
		s.msg.Password = password
		if username != s.backend.cfg.AcceptedUsername {
			return xerrors.New("unknown user")
		}
		if password != s.backend.cfg.AcceptedPassword {
			return xerrors.New("incorrect password")
		}
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.msg.From = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.msg.To = append(s.msg.To, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	contents, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.Contents = string(contents)

	s.backend.mu.Lock()
	s.backend.last = s.msg
	s.backend.mu.Unlock()
	return nil
}

func (s *session) Reset() {
	s.msg = &Message{}
}

func (*session) Logout() error {
	return nil
}

// CreateServer returns an unstarted SMTP server and the listener it should
// serve on. Auth over plaintext is allowed; this server only ever binds to
// loopback in tests.
func CreateServer(backend *Backend) (*smtp.Server, net.Listener, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, xerrors.Errorf("listen: %w", err)
	}
	srv := smtp.NewServer(backend)
	srv.AllowInsecureAuth = true
	return srv, l, nil
}

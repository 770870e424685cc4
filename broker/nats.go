package broker

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

type Nats struct {
	Url   string
	Token string
	Conn  *nats.Conn
}

func Connect(url, token string) (*Nats, error) {
	n := &Nats{
		Url:   url,
		Token: token,
	}

	if n.Url == "" {
		n.Url = nats.DefaultURL
	}

	opts := []nats.Option{
		nats.Name("livequiz"),
	}

	if n.Token != "" {
		opts = append(opts, nats.Token(n.Token))
	}

	conn, err := nats.Connect(n.Url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", n.Url, err)
	}

	n.Conn = conn

	return n, nil
}

func (n *Nats) Close() {
	if n != nil && n.Conn != nil {
		n.Conn.Close()
	}
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher mirrors room events onto NATS subjects of the form
// <prefix>.<ROOMCODE>.<event>.
type Publisher struct {
	conn   Conn
	prefix string
}

func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *Publisher) Subject(roomCode, event string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, roomCode, event)
}

func (p *Publisher) PublishRoomEvent(roomCode, event string, payload []byte) error {
	return p.conn.Publish(p.Subject(roomCode, event), payload)
}

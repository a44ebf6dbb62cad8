package ws

import (
	"github.com/gorilla/websocket"

	"github.com/space-operator/spo-go/pkg/credential"
)

// Option configures a Conn
type Option func(*Conn)

// WithCredentials sets the provider used for the authentication handshake
func WithCredentials(p credential.Provider) Option {
	return func(c *Conn) {
		if p != nil {
			c.creds = p
		}
	}
}

// WithToken authenticates with a fixed bearer token
func WithToken(token string) Option {
	return WithCredentials(credential.Static(token))
}

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithSubmitter sets where SignAndSubmitSignature reports signatures,
// normally the REST client
func WithSubmitter(s SignatureSubmitter) Option {
	return func(c *Conn) {
		c.submitter = s
	}
}

package server

import (
	"crypto/tls"
	"net"
	"time"
)

// ListenerFactory crea el socket de escucha del servidor. Permite enchufar
// TLS (o cualquier otro transporte orientado a stream) sin que el motor lo
// sepa: el handshake es asunto de la fábrica.
type ListenerFactory interface {
	Listen(addr string) (net.Listener, error)
	// Secure indica si las conexiones van cifradas: cambia el scheme de las
	// base URLs y el cierre de conexión (los sockets TLS no soportan
	// half-close).
	Secure() bool
}

// TCPListenerFactory produce sockets TCP planos; es la fábrica por defecto.
type TCPListenerFactory struct{}

func (TCPListenerFactory) Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func (TCPListenerFactory) Secure() bool { return false }

// TLSListenerFactory produce sockets TLS con la configuración dada
// (certificados incluidos).
type TLSListenerFactory struct {
	Config *tls.Config
}

func (f TLSListenerFactory) Listen(addr string) (net.Listener, error) {
	return tls.Listen("tcp", addr, f.Config)
}

func (TLSListenerFactory) Secure() bool { return true }

// timeoutReader aplica el timeout de lectura por conexión: cada Read arma el
// deadline de nuevo (equivalente a SO_TIMEOUT).
type timeoutReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (t *timeoutReader) Read(p []byte) (int, error) {
	if t.timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, err
		}
	}
	return t.conn.Read(p)
}

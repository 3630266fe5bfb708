package notify

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"sync"
	"time"
)

var errExpired = errors.New("expired")

// connExpiresAfter is how long an idle broker connection is kept open.
const connExpiresAfter = time.Second * 30

// Conn is a connection to one endpoint.
type Conn interface {
	Expired() bool
	Send(msg string) error
}

// idle tracks the last use of a connection. Callers hold mu.
type idle struct {
	mu sync.Mutex
	ex bool
	t  time.Time
}

// expire marks the connection expired once it has been idle too long and
// runs closer when it does.
func (i *idle) expire(closer func()) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.ex && time.Since(i.t) > connExpiresAfter {
		closer()
		i.ex = true
	}
	return i.ex
}

// touch records a use, or returns errExpired.
func (i *idle) touch() error {
	if i.ex {
		return errExpired
	}
	i.t = time.Now()
	return nil
}

// tlsConfig loads an optional client key pair and CA bundle. It returns nil
// when no file is given.
func tlsConfig(caCertFile, certFile, keyFile string) (*tls.Config, error) {
	if caCertFile == "" && certFile == "" && keyFile == "" {
		return nil, nil
	}
	var config tls.Config
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		config.Certificates = append(config.Certificates, cert)
	}
	if caCertFile != "" {
		caCert, err := os.ReadFile(caCertFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caCert)
		config.RootCAs = pool
	}
	return &config, nil
}

package notify

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const httpRequestTimeout = time.Second * 5

// HTTPConn posts messages to a webhook.
type HTTPConn struct {
	ep     Endpoint
	client *http.Client
}

func newHTTPConn(ep Endpoint) *HTTPConn {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = httpRequestTimeout
	return &HTTPConn{ep: ep, client: client}
}

// Expired is always false, the transport manages idle connections.
func (conn *HTTPConn) Expired() bool {
	return false
}

// Send posts msg as JSON.
func (conn *HTTPConn) Send(msg string) error {
	req, err := http.NewRequest(http.MethodPost, conn.ep.Original, strings.NewReader(msg))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := conn.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	}
	return fmt.Errorf("invalid status: %s", resp.Status)
}

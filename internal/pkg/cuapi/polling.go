package cuapi

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Polling is the HTTP request/response transport.  Every operation is one
// signed command envelope POSTed to the unit's /commands endpoint.
type Polling struct {
	CentralUnit

	client  *http.Client
	baseURL string
}

// NewPollingClient builds a polling transport for the unit at host.
// Nothing is contacted until Connect or the first operation.
func NewPollingClient(host, username, password string) *Polling {
	p := &Polling{
		CentralUnit: newCentralUnit(host, username, password),
		baseURL:     fmt.Sprintf("https://%s/commands", host),
		client: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				// the unit serves a self-signed certificate
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
	p.rpc = p

	return p
}

// WithTimeout overrides the per-request timeout
func (p *Polling) WithTimeout(d time.Duration) *Polling {
	p.client.Timeout = d
	return p
}

// WithHTTPClient substitutes the HTTP client, mostly for tests
func (p *Polling) WithHTTPClient(client *http.Client) *Polling {
	p.client = client
	return p
}

// Connect performs the initial full configuration fetch and state sync
func (p *Polling) Connect() error {
	if err := p.FetchConfiguration(IncludeAll()); err != nil {
		return err
	}
	return p.FetchStates()
}

func (p *Polling) call(command string, params interface{}) (*Envelope, error) {
	body := request{
		Command: command,
		Params:  params,
	}
	if command != CommandLogin {
		body.Token = p.session.current()
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, &ProtocolError{Msg: "encoding command envelope", Err: err}
	}

	resp, err := p.client.Post(p.baseURL, "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, &ProtocolError{Msg: "failed to communicate with the central unit", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProtocolError{Msg: "reading response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{
			Msg: fmt.Sprintf("request to the central unit failed with status=%d", resp.StatusCode),
		}
	}

	var env Envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return nil, &ProtocolError{
			Msg: fmt.Sprintf("unexpected response: %s", bodyBytes),
			Err: err,
		}
	}

	if err := p.checkStatus(&env, bodyBytes); err != nil {
		return nil, err
	}

	return &env, nil
}

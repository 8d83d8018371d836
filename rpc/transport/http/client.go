package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/transport"
)

// retryBackoff is the pause before retrying a rate limited request
const retryBackoff = 20 * time.Millisecond

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (transport *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("http transport: no endpoints configured")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Set the client and server URLs
	transport.client = client
	transport.serverURLs = parsedURLs
	transport.counter = 0
	transport.retryCount = max(1, config.RetryCount)

	// No error
	return nil
}

func (transport *httpClientTransport) Send(service string, req []byte) (resp []byte, err error) {
	// Check if the transport is initialized
	if transport.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Select the next server via round-robin
	idx := atomic.AddUint32(&transport.counter, 1) % uint32(len(transport.serverURLs))
	requestURL := transport.serverURLs[idx].JoinPath(service).String()

	// Send the request (with retries)
	for i := 0; i < transport.retryCount; i++ {
		var retry bool
		resp, retry, err = transport.post(requestURL, req)
		if err == nil || !retry {
			return resp, err
		}
		time.Sleep(retryBackoff)
	}
	return nil, err
}

func (transport *httpClientTransport) Close() error {
	// Close the client
	if transport.client != nil {
		transport.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	transport.client = nil
	transport.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post sends one request. Network errors and 429 responses can be retried.
func (transport *httpClientTransport) post(requestURL string, req []byte) (resp []byte, retry bool, err error) {
	httpResponse, err := transport.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
	if err != nil {
		return nil, true, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, httpResponse.StatusCode == http.StatusTooManyRequests, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	// Read the response body
	resp, err = io.ReadAll(httpResponse.Body)
	return resp, false, err
}

package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/avahowell/voprfscan/pkg/envelope"
)

// HTTPTransport posts a blinded point to a remote scan server's image-scan
// endpoint over HTTP and decodes its enveloped response.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPTransport builds an HTTPTransport with a bounded request timeout.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// PostBlindedPoint implements Transport. The blinded point travels as the
// "blindedPoint" field of a multipart form, matching /api/scan/image's
// external interface.
func (t *HTTPTransport) PostBlindedPoint(blindedPointHex string) (*envelope.Envelope, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("blindedPoint", blindedPointHex); err != nil {
		return nil, fmt.Errorf("scan: encode request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("scan: encode request: %w", err)
	}

	resp, err := t.Client.Post(t.BaseURL+"/api/scan/image", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("scan: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan: server returned status %d", resp.StatusCode)
	}

	var env envelope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("scan: decode response: %w", err)
	}
	return &env, nil
}

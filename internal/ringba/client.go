package ringba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/metrics"
	"github.com/vellko/affiliate-admin/internal/repository"
)

const requestTimeout = 30 * time.Second

// Client talks to the Ringba call tracking API. All endpoints are JSON and
// scoped under the account id.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Ringba API client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With().Str("client", "ringba").Logger(),
	}
}

// CreateResult is the outcome of a publisher creation attempt. RawResponse is
// populated whenever a body was received, including on rejected requests.
type CreateResult struct {
	PublisherID string
	RawResponse string
}

// CreatePublisher creates a new publisher under the account. Ringba has
// returned the created entity both as a top-level object and nested under
// "publishers" across API revisions, so the id is looked up in both places.
// On an upstream rejection the returned CreateResult still carries the
// response body alongside the error.
func (c *Client) CreatePublisher(ctx context.Context, conn *repository.RingbaConnection, name, subID string) (*CreateResult, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/Publishers", conn.APIURL, conn.AccountID)

	payload := map[string]any{
		"name":                 name,
		"subId":                subID,
		"enabled":              true,
		"createNumbers":        true,
		"createUser":           false,
		"blockCappedCalls":     false,
		"allowRecordingAccess": true,
	}

	raw, err := c.post(ctx, conn, "create_publisher", endpoint, payload)
	if err != nil {
		return &CreateResult{RawResponse: string(raw)}, err
	}

	id, ok := extractPublisherID(raw)
	if !ok {
		metrics.PlatformRequestErrors.WithLabelValues("ringba", "create_publisher").Inc()
		return &CreateResult{RawResponse: string(raw)},
			apperrors.New(apperrors.CodeUpstream, "ringba response missing publisher id")
	}

	return &CreateResult{PublisherID: id, RawResponse: string(raw)}, nil
}

// InvitePublisher sends the account-access invitation email for a publisher.
// Errors are returned for the caller to record; a failed invite never undoes
// a successful creation.
func (c *Client) InvitePublisher(ctx context.Context, conn *repository.RingbaConnection, publisherID, email, firstName, lastName string) error {
	endpoint := fmt.Sprintf("%s/v2/%s/Publishers/%s/Invitations", conn.APIURL, conn.AccountID, publisherID)

	payload := map[string]any{
		"email":     email,
		"firstName": firstName,
		"lastName":  lastName,
	}

	_, err := c.post(ctx, conn, "invite_publisher", endpoint, payload)
	return err
}

func (c *Client) post(ctx context.Context, conn *repository.RingbaConnection, operation, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode ringba request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build ringba request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+conn.APIToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.PlatformRequestDuration.WithLabelValues("ringba", operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlatformRequestErrors.WithLabelValues("ringba", operation).Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "ringba request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.PlatformRequestErrors.WithLabelValues("ringba", operation).Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to read ringba response")
	}
	if resp.StatusCode >= 300 {
		metrics.PlatformRequestErrors.WithLabelValues("ringba", operation).Inc()
		// The body is returned alongside the error so callers can record it.
		return respBody, apperrors.New(apperrors.CodeUpstream,
			fmt.Sprintf("ringba returned %d: %s", resp.StatusCode, string(respBody)))
	}
	return respBody, nil
}

// extractPublisherID pulls the created publisher's id out of a response body,
// accepting both {"id": ...} and {"publishers": {"id": ...}} shapes. Numeric
// and string ids are both normalised to strings.
func extractPublisherID(raw []byte) (string, bool) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false
	}

	if nested, ok := body["publishers"].(map[string]any); ok {
		if id, ok := stringifyID(nested["id"]); ok {
			return id, true
		}
	}
	return stringifyID(body["id"])
}

func stringifyID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return fmt.Sprintf("%.0f", id), true
	default:
		return "", false
	}
}

package cake

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/metrics"
	"github.com/vellko/affiliate-admin/internal/repository"
)

const (
	addAffiliatePath = "/api/1/addedit.asmx/Affiliate"

	requestTimeout = 30 * time.Second
)

// duplicateIDPattern recovers the existing affiliate id from Cake's duplicate
// rejection message, e.g. "Affiliate with this email already exists.
// Affiliate ID: 1234".
var duplicateIDPattern = regexp.MustCompile(`Affiliate ID: (\d+)`)

// Client talks to the Cake affiliate network API. The add/edit surface is the
// legacy XML-over-GET endpoint; manager assignment goes through the v2 JSON
// API.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Cake API client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With().Str("client", "cake").Logger(),
	}
}

// CreateResult is the outcome of an affiliate creation attempt.
type CreateResult struct {
	Success     bool
	Message     string
	AffiliateID string
	// Recovered marks a duplicate rejection that was reclassified as success
	// because the existing affiliate id could be extracted from the message.
	Recovered   bool
	RawResponse string
}

// affiliate_signup_response root element; success arrives as free-case text
// ("true"/"True") so it is parsed leniently rather than as a strict bool.
type affiliateResponse struct {
	Success     string `xml:"success"`
	Message     string `xml:"message"`
	AffiliateID string `xml:"affiliate_id"`
}

func (r affiliateResponse) ok() bool {
	return strings.EqualFold(strings.TrimSpace(r.Success), "true")
}

// CreateAffiliate submits a new affiliate to Cake. Parameters are sent flat in
// the query string, the way the legacy endpoint expects them. A "duplicate
// affiliate" rejection carrying the existing id in its message is treated as
// success with the recovered id.
func (c *Client) CreateAffiliate(ctx context.Context, conn *repository.CakeConnection, params map[string]string) (*CreateResult, error) {
	endpoint := conn.APIURL + addAffiliatePath

	q := url.Values{}
	q.Set("api_key", conn.APIKey)
	for k, v := range params {
		q.Set(k, v)
	}

	start := time.Now()
	raw, err := c.get(ctx, endpoint+"?"+q.Encode())
	metrics.PlatformRequestDuration.WithLabelValues("cake", "create_affiliate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlatformRequestErrors.WithLabelValues("cake", "create_affiliate").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "cake affiliate creation request failed")
	}

	var resp affiliateResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		metrics.PlatformRequestErrors.WithLabelValues("cake", "create_affiliate").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "cake returned unparseable response")
	}

	result := &CreateResult{
		Success:     resp.ok(),
		Message:     resp.Message,
		AffiliateID: resp.AffiliateID,
		RawResponse: string(raw),
	}

	if !result.Success {
		if m := duplicateIDPattern.FindStringSubmatch(resp.Message); m != nil {
			c.logger.Info().Str("affiliate_id", m[1]).Msg("duplicate affiliate, recovering existing id")
			result.Success = true
			result.Recovered = true
			result.AffiliateID = m[1]
		}
	}
	return result, nil
}

// AssignManager sets the account manager on an existing affiliate via the v2
// API. Errors are returned for the caller to record; a failed assignment never
// undoes a successful creation.
func (c *Client) AssignManager(ctx context.Context, conn *repository.CakeConnection, affiliateID, managerID string) error {
	endpoint := fmt.Sprintf("%s/affiliates/%s", conn.APIV2URL, affiliateID)

	body, err := json.Marshal(map[string]string{"account_manager_id": managerID})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode manager assignment")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build manager assignment request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+conn.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.PlatformRequestDuration.WithLabelValues("cake", "assign_manager").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlatformRequestErrors.WithLabelValues("cake", "assign_manager").Inc()
		return apperrors.Wrap(err, apperrors.CodeUpstream, "cake manager assignment request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.PlatformRequestErrors.WithLabelValues("cake", "assign_manager").Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.New(apperrors.CodeUpstream,
			fmt.Sprintf("cake manager assignment returned %d: %s", resp.StatusCode, string(respBody)))
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

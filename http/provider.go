package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
)

// DefaultProviderURL is the Punting Form meetings list endpoint.
const DefaultProviderURL = "https://api.puntingform.com.au/v2/form/meetingslist"

// DefaultProviderTimeout bounds one meetings list request.
const DefaultProviderTimeout = 20 * time.Second

// MeetingDateLayout is the "D MMM YYYY" form the provider expects.
const MeetingDateLayout = "2 Jan 2006"

var _ racecal.ProviderClient = (*MeetingsClient)(nil)

// MeetingsClient lists a date's meetings from the form provider.
type MeetingsClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// ClientOption configures a MeetingsClient.
type ClientOption func(*MeetingsClient)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *MeetingsClient) {
		c.baseURL = u
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *MeetingsClient) {
		c.client = hc
	}
}

// NewMeetingsClient creates a client authenticating with apiKey.
func NewMeetingsClient(apiKey string, opts ...ClientOption) *MeetingsClient {
	c := &MeetingsClient{
		client:  &http.Client{Timeout: DefaultProviderTimeout},
		baseURL: DefaultProviderURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type meetingsResponse struct {
	PayLoad []providerMeeting `json:"payLoad"`
	Payload []providerMeeting `json:"payload"`
}

type providerMeeting struct {
	MeetingID flexibleID `json:"meetingId"`
	Track     struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"track"`
}

// flexibleID accepts a JSON number or string.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = flexibleID(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

// Meetings returns the provider's meetings on date. A non-200 response or
// an empty payload yields no meetings and no error.
func (c *MeetingsClient) Meetings(ctx context.Context, date time.Time) ([]racecal.ProviderMeeting, error) {
	if c.apiKey == "" {
		return nil, racecal.Errorf(racecal.EINVALID, "provider API key required")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, racecal.Errorf(racecal.EINVALID, "invalid provider URL: %v", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("meetingDate", date.Format(MeetingDateLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider meetings for %s: %w", date.Format(time.DateOnly), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	var body meetingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("decode provider meetings for %s: %w", date.Format(time.DateOnly), err)
	}

	payload := body.PayLoad
	if len(payload) == 0 {
		payload = body.Payload
	}

	day := racecal.Day(date)
	meetings := make([]racecal.ProviderMeeting, 0, len(payload))
	for _, m := range payload {
		name := strings.TrimSpace(m.Track.Name)
		region, err := racecal.ParseRegion(m.Track.State)
		if name == "" || err != nil || m.MeetingID == "" {
			continue
		}
		meetings = append(meetings, racecal.ProviderMeeting{
			Date:       day,
			Region:     region,
			RawName:    name,
			ProviderID: string(m.MeetingID),
		})
	}

	return meetings, nil
}

package racecal

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Discoverer enumerates the meetings held in a window.
type Discoverer interface {
	// Discover returns every non-trial meeting key dated inside w.
	// Unreachable listings contribute no keys rather than failing the call.
	Discover(ctx context.Context, w Window) ([]MeetingKey, error)
}

// VenueInventory supplies known venues per region for brute-force probing.
type VenueInventory interface {
	Venues(ctx context.Context) (map[Region][]string, error)
}

// KeyExtractor finds meeting keys in raw page text.
type KeyExtractor interface {
	// ExtractKeys returns the unique valid keys found in html, sorted.
	// pageURL resolves relative links.
	ExtractKeys(html, pageURL string) []MeetingKey
}

// ActionFinder lists the controls a listing page offers for moving on.
type ActionFinder interface {
	// FindActions returns the page's hidden form state and its candidate
	// actions in priority order.
	FindActions(html, pageURL string) (*ActionSet, error)
}

// ActionKind is the mechanism an action uses.
type ActionKind int

const (
	// ActionLink follows an href with GET.
	ActionLink ActionKind = iota
	// ActionSubmit posts the page's form with a named button.
	ActionSubmit
	// ActionPostBack posts the page's form with an event target.
	ActionPostBack
)

func (k ActionKind) String() string {
	switch k {
	case ActionLink:
		return "link"
	case ActionSubmit:
		return "submit"
	case ActionPostBack:
		return "postback"
	}
	return "unknown"
}

// Action is one candidate control on a listing page.
type Action struct {
	Kind ActionKind `json:"kind"`
	Text string     `json:"text"`

	// URL is the resolved href of a link action.
	URL string `json:"url,omitempty"`

	// Fields are the action's own form fields, replayed over the page's
	// hidden fields.
	Fields url.Values `json:"fields,omitempty"`
}

// Signature identifies an action independently of the page it was found
// on, so the same control can be located again after navigation.
func (a Action) Signature() string {
	return a.Kind.String() + "|" + a.URL + "|" + a.Fields.Encode()
}

// IsNextWeek reports whether the action's label mentions both "next" and
// "week".
func (a Action) IsNextWeek() bool {
	t := strings.ToLower(a.Text)
	return strings.Contains(t, "next") && strings.Contains(t, "week")
}

// ActionSet holds a listing page's form state and candidate actions.
type ActionSet struct {
	// FormURL is the resolved action URL of the page's form.
	FormURL string     `json:"formUrl"`
	Hidden  url.Values `json:"hidden"`
	Actions []Action   `json:"actions"`
}

// Find returns the action with the given signature.
func (s *ActionSet) Find(signature string) (Action, bool) {
	for _, a := range s.Actions {
		if a.Signature() == signature {
			return a, true
		}
	}
	return Action{}, false
}

// Request builds the request that applies a. Links are fetched with GET;
// submits and postbacks POST every hidden field overridden by the
// action's own fields.
func (s *ActionSet) Request(a Action, referer string) *Request {
	if a.Kind == ActionLink {
		return &Request{Method: http.MethodGet, URL: a.URL, Referer: referer}
	}

	form := url.Values{}
	for k, v := range s.Hidden {
		form[k] = append([]string(nil), v...)
	}
	for k, v := range a.Fields {
		form[k] = append([]string(nil), v...)
	}

	target := s.FormURL
	if target == "" {
		target = referer
	}
	return &Request{Method: http.MethodPost, URL: target, Referer: referer, Form: form}
}

// Package visa implements the scheduling-service client against the
// ais.usvisa-info.com appointment endpoints: HTML sign-in with CSRF token
// scraping, JSON date/time lookups, and the form-encoded rebooking POST.
package visa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/sony/gobreaker/v2"
)

const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

var csrfMetaRe = regexp.MustCompile(`<meta[^>]*name="csrf-token"[^>]*content="([^"]+)"`)

// Session is the authenticated context for one sign-in: the service session
// cookies plus the CSRF token scraped at login. Replaced wholesale by a new
// Login after a fatal error.
type Session struct {
	cookies string
	csrf    string
}

type Client struct {
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]

	base     string // e.g. https://ais.usvisa-info.com/en-ca/niv
	email    string
	password string
	ua       string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the service base URL. Used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(countryCode, email, password string, opts ...Option) *Client {
	c := &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		base:     fmt.Sprintf("https://ais.usvisa-info.com/en-%s/niv", countryCode),
		email:    email,
		password: password,
		ua:       defaultUA,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "visa-appointment-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login performs the two-step sign-in: fetch the sign-in page for a CSRF
// token and session cookie, then post the credentials.
func (c *Client) Login(ctx context.Context) (appointment.Session, error) {
	status, body, resp, err := c.do(ctx, http.MethodGet, c.base+"/users/sign_in", "", nil, map[string]string{
		"Accept": "text/html",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sign-in page: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch sign-in page: status=%d", status)
	}
	m := csrfMetaRe.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("sign-in page has no csrf-token meta tag")
	}
	s := &Session{csrf: string(m[1])}
	s.cookies = mergeCookies(s.cookies, resp)

	form := url.Values{}
	form.Set("user[email]", c.email)
	form.Set("user[password]", c.password)
	form.Set("policy_confirmed", "1")
	form.Set("commit", "Sign In")

	status, _, resp, err = c.do(ctx, http.MethodPost, c.base+"/users/sign_in", "application/x-www-form-urlencoded", []byte(form.Encode()), map[string]string{
		"Accept":           "*/*",
		"X-CSRF-Token":     s.csrf,
		"Cookie":           s.cookies,
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("sign in rejected: status=%d (check EMAIL/PASSWORD)", status)
	}
	s.cookies = mergeCookies(s.cookies, resp)
	return s, nil
}

// AvailableDates fetches the open dates for a facility. An empty slice means
// no openings.
func (c *Client) AvailableDates(ctx context.Context, sess appointment.Session, scheduleID string, facility appointment.FacilityID) ([]appointment.Date, error) {
	s, err := concrete(sess)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/schedule/%s/appointment/days/%s.json?appointments[expedite]=false", c.base, scheduleID, facility)
	status, body, resp, err := c.do(ctx, http.MethodGet, u, "", nil, c.jsonHeaders(s))
	if err != nil {
		return nil, fmt.Errorf("available dates facility=%s: %w", facility, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("available dates facility=%s: status=%d", facility, status)
	}
	s.cookies = mergeCookies(s.cookies, resp)

	var entries []struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("available dates facility=%s: decode: %w", facility, err)
	}
	out := make([]appointment.Date, 0, len(entries))
	for _, e := range entries {
		d, err := appointment.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("available dates facility=%s: %w", facility, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// AvailableTime returns the latest listed slot time for the date, or "" when
// the facility has none.
func (c *Client) AvailableTime(ctx context.Context, sess appointment.Session, scheduleID string, facility appointment.FacilityID, date appointment.Date) (string, error) {
	s, err := concrete(sess)
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/schedule/%s/appointment/times/%s.json?date=%s&appointments[expedite]=false", c.base, scheduleID, facility, date)
	status, body, resp, err := c.do(ctx, http.MethodGet, u, "", nil, c.jsonHeaders(s))
	if err != nil {
		return "", fmt.Errorf("available times facility=%s date=%s: %w", facility, date, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("available times facility=%s date=%s: status=%d", facility, date, status)
	}
	s.cookies = mergeCookies(s.cookies, resp)

	var times struct {
		AvailableTimes []string `json:"available_times"`
		BusinessTimes  []string `json:"business_times"`
	}
	if err := json.Unmarshal(body, &times); err != nil {
		return "", fmt.Errorf("available times facility=%s date=%s: decode: %w", facility, date, err)
	}
	if n := len(times.BusinessTimes); n > 0 {
		return times.BusinessTimes[n-1], nil
	}
	if n := len(times.AvailableTimes); n > 0 {
		return times.AvailableTimes[n-1], nil
	}
	return "", nil
}

// Book reschedules the appointment. It refetches the appointment form first
// for a fresh authenticity token, then posts the consulate booking.
func (c *Client) Book(ctx context.Context, sess appointment.Session, scheduleID string, facility appointment.FacilityID, date appointment.Date, slot string) error {
	s, err := concrete(sess)
	if err != nil {
		return err
	}
	formURL := fmt.Sprintf("%s/schedule/%s/appointment", c.base, scheduleID)

	status, body, resp, err := c.do(ctx, http.MethodGet, formURL, "", nil, map[string]string{
		"Accept": "text/html",
		"Cookie": s.cookies,
	})
	if err != nil {
		return fmt.Errorf("fetch appointment form: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("fetch appointment form: status=%d", status)
	}
	m := csrfMetaRe.FindSubmatch(body)
	if m == nil {
		return fmt.Errorf("appointment form has no csrf-token meta tag")
	}
	s.cookies = mergeCookies(s.cookies, resp)

	form := url.Values{}
	form.Set("utf8", "✓")
	form.Set("authenticity_token", string(m[1]))
	form.Set("confirmed_limit_message", "1")
	form.Set("use_consulate_appointment_capacity", "true")
	form.Set("appointments[consulate_appointment][facility_id]", string(facility))
	form.Set("appointments[consulate_appointment][date]", date.String())
	form.Set("appointments[consulate_appointment][time]", slot)

	status, _, resp, err = c.do(ctx, http.MethodPost, formURL, "application/x-www-form-urlencoded", []byte(form.Encode()), map[string]string{
		"Accept": "text/html",
		"Cookie": s.cookies,
	})
	if err != nil {
		return fmt.Errorf("book facility=%s date=%s: %w", facility, date, err)
	}
	// The service answers the booking POST with a redirect to the
	// confirmation page.
	if status >= 400 {
		return fmt.Errorf("book facility=%s date=%s: status=%d", facility, date, status)
	}
	s.cookies = mergeCookies(s.cookies, resp)
	return nil
}

func (c *Client) jsonHeaders(s *Session) map[string]string {
	return map[string]string{
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
		"Cookie":           s.cookies,
	}
}

// do issues one HTTP request through the circuit breaker and returns the
// status, the fully-read body, and the response for cookie extraction.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body []byte, headers map[string]string) (int, []byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Referer", c.base)
	req.Header.Set("Cache-Control", "no-store")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	res, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.hc.Do(req)
	})
	if err != nil {
		return 0, nil, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, res, err
	}
	return res.StatusCode, b, res, nil
}

func concrete(sess appointment.Session) (*Session, error) {
	s, ok := sess.(*Session)
	if !ok || s == nil {
		return nil, fmt.Errorf("session was not produced by this client")
	}
	return s, nil
}

// mergeCookies folds any Set-Cookie headers from resp into the stored cookie
// string, replacing same-name cookies.
func mergeCookies(existing string, resp *http.Response) string {
	if resp == nil || len(resp.Cookies()) == 0 {
		return existing
	}
	merged := map[string]string{}
	var order []string
	for _, part := range strings.Split(existing, "; ") {
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if _, seen := merged[name]; !seen {
			order = append(order, name)
		}
		merged[name] = value
	}
	for _, ck := range resp.Cookies() {
		if _, seen := merged[ck.Name]; !seen {
			order = append(order, ck.Name)
		}
		merged[ck.Name] = ck.Value
	}
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, name+"="+merged[name])
	}
	return strings.Join(parts, "; ")
}

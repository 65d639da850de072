package visa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService emulates the scheduling endpoints the client talks to.
type fakeService struct {
	mux *http.ServeMux

	datesBody  string
	timesBody  string
	bookedForm url.Values
	lastAuthed bool
}

func newFakeService(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	fs := &fakeService{mux: http.NewServeMux(), datesBody: "[]", timesBody: "{}"}

	fs.mux.HandleFunc("GET /users/sign_in", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_yatri_session", Value: "anon"})
		fmt.Fprint(w, `<html><head><meta name="csrf-token" content="csrf-123" /></head></html>`)
	})
	fs.mux.HandleFunc("POST /users/sign_in", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Header.Get("X-CSRF-Token") != "csrf-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.PostForm.Get("user[email]") != "me@example.com" || r.PostForm.Get("user[password]") != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "_yatri_session", Value: "authed"})
		w.WriteHeader(http.StatusOK)
	})
	fs.mux.HandleFunc("GET /schedule/555/appointment/days/89.json", func(w http.ResponseWriter, r *http.Request) {
		fs.lastAuthed = strings.Contains(r.Header.Get("Cookie"), "_yatri_session=authed")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, fs.datesBody)
	})
	fs.mux.HandleFunc("GET /schedule/555/appointment/times/89.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, fs.timesBody)
	})
	fs.mux.HandleFunc("GET /schedule/555/appointment", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta name="csrf-token" content="csrf-book" /></head></html>`)
	})
	fs.mux.HandleFunc("POST /schedule/555/appointment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fs.bookedForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(fs.mux)
	t.Cleanup(srv.Close)
	return srv, fs
}

func newTestClient(srv *httptest.Server) *Client {
	return New("ca", "me@example.com", "hunter2", WithBaseURL(srv.URL))
}

func TestLogin(t *testing.T) {
	srv, fs := newFakeService(t)
	c := newTestClient(srv)

	sess, err := c.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)

	fs.datesBody = `[]`
	_, err = c.AvailableDates(context.Background(), sess, "555", "89")
	require.NoError(t, err)
	assert.True(t, fs.lastAuthed, "authenticated session cookie should be sent after login")
}

func TestLogin_BadCredentials(t *testing.T) {
	srv, _ := newFakeService(t)
	c := New("ca", "me@example.com", "wrong", WithBaseURL(srv.URL))

	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign in rejected")
}

func TestAvailableDates(t *testing.T) {
	srv, fs := newFakeService(t)
	c := newTestClient(srv)
	sess, err := c.Login(context.Background())
	require.NoError(t, err)

	fs.datesBody = `[{"date":"2026-01-05","business_day":true},{"date":"2026-01-09","business_day":true}]`
	dates, err := c.AvailableDates(context.Background(), sess, "555", "89")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2026-01-05", dates[0].String())

	fs.datesBody = `[]`
	dates, err = c.AvailableDates(context.Background(), sess, "555", "89")
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestAvailableDates_UnknownFacilityStatus(t *testing.T) {
	srv, _ := newFakeService(t)
	c := newTestClient(srv)
	sess, err := c.Login(context.Background())
	require.NoError(t, err)

	_, err = c.AvailableDates(context.Background(), sess, "555", "404")
	require.Error(t, err)
}

func TestAvailableTime(t *testing.T) {
	srv, fs := newFakeService(t)
	c := newTestClient(srv)
	sess, err := c.Login(context.Background())
	require.NoError(t, err)

	date := appointment.MustDate("2026-01-05")

	fs.timesBody = `{"available_times":["08:00","09:30"],"business_times":["09:00","10:15"]}`
	slot, err := c.AvailableTime(context.Background(), sess, "555", "89", date)
	require.NoError(t, err)
	assert.Equal(t, "10:15", slot, "latest business time wins")

	fs.timesBody = `{"available_times":["08:00","09:30"],"business_times":[]}`
	slot, err = c.AvailableTime(context.Background(), sess, "555", "89", date)
	require.NoError(t, err)
	assert.Equal(t, "09:30", slot)

	fs.timesBody = `{"available_times":[],"business_times":[]}`
	slot, err = c.AvailableTime(context.Background(), sess, "555", "89", date)
	require.NoError(t, err)
	assert.Empty(t, slot, "no times is not an error")
}

func TestBook(t *testing.T) {
	srv, fs := newFakeService(t)
	c := newTestClient(srv)
	sess, err := c.Login(context.Background())
	require.NoError(t, err)

	err = c.Book(context.Background(), sess, "555", "89", appointment.MustDate("2026-01-05"), "09:00")
	require.NoError(t, err)

	require.NotNil(t, fs.bookedForm)
	assert.Equal(t, "csrf-book", fs.bookedForm.Get("authenticity_token"))
	assert.Equal(t, "89", fs.bookedForm.Get("appointments[consulate_appointment][facility_id]"))
	assert.Equal(t, "2026-01-05", fs.bookedForm.Get("appointments[consulate_appointment][date]"))
	assert.Equal(t, "09:00", fs.bookedForm.Get("appointments[consulate_appointment][time]"))
}

func TestSessionFromAnotherClientRejected(t *testing.T) {
	srv, _ := newFakeService(t)
	c := newTestClient(srv)

	_, err := c.AvailableDates(context.Background(), struct{}{}, "555", "89")
	require.Error(t, err)
}

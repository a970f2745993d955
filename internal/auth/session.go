package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pkt.systems/pslog"
)

const (
	hnBaseURL  = "https://news.ycombinator.com"
	sessionKey = "hn_session"
)

// ErrNotLoggedIn is returned by actions that need an authenticated session.
var ErrNotLoggedIn = errors.New("not logged in")

// Store persists the session between runs.
type Store interface {
	GetSession(ctx context.Context, key string) (string, bool, error)
	PutSession(ctx context.Context, key, value string) error
	DeleteSession(ctx context.Context, key string) error
}

// Session manages HN authentication state.
type Session struct {
	client   *http.Client
	jar      *cookiejar.Jar
	baseURL  string
	log      pslog.Logger
	Username string
	LoggedIn bool
}

// NewSession creates a new auth session. An empty baseURL selects
// news.ycombinator.com.
func NewSession(baseURL string, log pslog.Logger) *Session {
	if baseURL == "" {
		baseURL = hnBaseURL
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	jar, _ := cookiejar.New(nil)
	return &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
		jar:     jar,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Login authenticates with HN using username and password.
func (s *Session) Login(ctx context.Context, username, password string) error {
	data := url.Values{
		"acct": {username},
		"pw":   {password},
		"goto": {"news"},
	}

	if _, _, err := s.post(ctx, "/login", data); err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	// Validate: fetch the main page and check for logout link.
	if err := s.validate(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	s.Username = username
	s.LoggedIn = true
	s.log.Info("logged in", "user", username)
	return nil
}

// savedSession is the JSON structure written to the store.
type savedSession struct {
	Username string        `json:"username"`
	Cookies  []savedCookie `json:"cookies"`
	SavedAt  time.Time     `json:"saved_at"`
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Save persists the session cookies.
func (s *Session) Save(ctx context.Context, store Store) error {
	if !s.LoggedIn {
		return ErrNotLoggedIn
	}

	u, _ := url.Parse(s.baseURL)
	cookies := s.jar.Cookies(u)

	sc := make([]savedCookie, len(cookies))
	for i, c := range cookies {
		sc[i] = savedCookie{Name: c.Name, Value: c.Value}
	}

	data, err := json.Marshal(savedSession{
		Username: s.Username,
		Cookies:  sc,
		SavedAt:  time.Now(),
	})
	if err != nil {
		return err
	}
	return store.PutSession(ctx, sessionKey, string(data))
}

// Load restores a saved session and validates it's still good.
// Returns true if the session was restored successfully.
func (s *Session) Load(ctx context.Context, store Store) (bool, error) {
	raw, ok, err := store.GetSession(ctx, sessionKey)
	if err != nil || !ok {
		return false, err
	}

	var saved savedSession
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return false, fmt.Errorf("decoding saved session: %w", err)
	}
	if saved.Username == "" || len(saved.Cookies) == 0 {
		return false, nil
	}

	u, _ := url.Parse(s.baseURL)
	cookies := make([]*http.Cookie, len(saved.Cookies))
	for i, sc := range saved.Cookies {
		cookies[i] = &http.Cookie{Name: sc.Name, Value: sc.Value}
	}
	s.jar.SetCookies(u, cookies)

	if err := s.validate(ctx); err != nil {
		// Stale session; clear it.
		s.log.Info("saved session expired", "user", saved.Username, "error", err)
		return false, store.DeleteSession(ctx, sessionKey)
	}

	s.Username = saved.Username
	s.LoggedIn = true
	return true, nil
}

func (s *Session) validate(ctx context.Context) error {
	_, body, err := s.get(ctx, "/news")
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "logout") {
		return fmt.Errorf("authentication failed - no logout link found")
	}
	return nil
}

// Reply posts a reply to an HN item. Top-level comments are replies to
// the story.
func (s *Session) Reply(ctx context.Context, parentID int, text string) error {
	if !s.LoggedIn {
		return ErrNotLoggedIn
	}

	status, body, err := s.get(ctx, fmt.Sprintf("/reply?id=%d", parentID))
	if err != nil {
		return fmt.Errorf("fetching reply page: %w", err)
	}

	data := extractFormInputs(string(body))
	if data.Get("hmac") == "" {
		return fmt.Errorf("could not extract reply token (hmac) from reply page (status %d, %d bytes)", status, len(body))
	}
	data.Set("text", text)
	s.log.Debug("reply form", "parent", data.Get("parent"), "goto", data.Get("goto"), "text_len", len(text))

	status, respBody, err := s.post(ctx, "/comment", data)
	if err != nil {
		return fmt.Errorf("submitting reply: %w", err)
	}
	s.log.Debug("reply posted", "status", status, "body_len", len(respBody))
	return checkHNResponse(status, respBody)
}

// Delete removes one of the user's own comments through HN's confirm form.
func (s *Session) Delete(ctx context.Context, itemID int) error {
	if !s.LoggedIn {
		return ErrNotLoggedIn
	}

	status, body, err := s.get(ctx, fmt.Sprintf("/delete-confirm?id=%d&goto=news", itemID))
	if err != nil {
		return fmt.Errorf("fetching delete page: %w", err)
	}
	data := extractFormInputs(string(body))
	if data.Get("hmac") == "" {
		return fmt.Errorf("could not extract delete token (hmac) for item %d (status %d)", itemID, status)
	}
	if data.Get("id") == "" {
		data.Set("id", fmt.Sprint(itemID))
	}
	data.Set("d", "Yes")

	status, respBody, err := s.post(ctx, "/xdelete", data)
	if err != nil {
		return fmt.Errorf("deleting %d: %w", itemID, err)
	}
	return checkHNResponse(status, respBody)
}

func (s *Session) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	return s.do(req)
}

func (s *Session) post(ctx context.Context, path string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *Session) do(req *http.Request) (int, []byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// hiddenInputRe matches <input type="hidden" name="X" value="Y"> with
// attributes in any order. It captures name and value groups.
var hiddenInputRe = regexp.MustCompile(
	`<input[^>]*type=["']?hidden["']?[^>]*name=["']([^"']+)["'][^>]*value=["']([^"']+)["'][^>]*/?>` +
		`|` +
		`<input[^>]*value=["']([^"']+)["'][^>]*name=["']([^"']+)["'][^>]*type=["']?hidden["']?[^>]*/?>` +
		`|` +
		`<input[^>]*name=["']([^"']+)["'][^>]*value=["']([^"']+)["'][^>]*type=["']?hidden["']?[^>]*/?>`,
)

// extractFormInputs extracts all hidden input fields from HTML as url.Values.
func extractFormInputs(html string) url.Values {
	vals := url.Values{}
	for _, m := range hiddenInputRe.FindAllStringSubmatch(html, -1) {
		// Groups depend on which alternation matched.
		switch {
		case m[1] != "" && m[2] != "":
			vals.Set(m[1], m[2])
		case m[3] != "" && m[4] != "":
			vals.Set(m[4], m[3])
		case m[5] != "" && m[6] != "":
			vals.Set(m[5], m[6])
		}
	}
	return vals
}

// checkHNResponse checks the POST response for HN error messages.
func checkHNResponse(statusCode int, body []byte) error {
	if statusCode >= 400 {
		return fmt.Errorf("request failed with status %d", statusCode)
	}
	s := string(body)
	for _, errText := range []string{"Unknown.", "Please try again.", "You're submitting too fast."} {
		if strings.Contains(s, errText) {
			return fmt.Errorf("HN error: %s", errText)
		}
	}
	return nil
}

package adjust

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
)

const (
	DefaultBaseURL = "https://api.adjust.com/"

	signInPath = "accounts/users/sign_in"

	// Cap on simultaneous in-flight dashboard calls during List. Purely a
	// throughput optimisation; correctness never depends on concurrency.
	defaultMaxInFlight = 8
)

var ErrUnknownCallback = errors.New("callback not present on the dashboard")

// APIError is a non-2xx dashboard response.
type APIError struct {
	StatusCode int
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("adjust api: %s returned %d", e.Path, e.StatusCode)
}

// API is the dashboard surface the snapshot operations consume. It
// satisfies reconcile.Gateway.
type API interface {
	List(ctx context.Context) ([]callback.Record, error)
	Create(ctx context.Context, record callback.Record) (callback.Record, error)
	Update(ctx context.Context, id callback.Identity, record callback.Record) (callback.Record, error)
	Delete(ctx context.Context, id callback.Identity) error
	Placeholders(ctx context.Context) ([]string, error)
}

var _ API = (*Client)(nil)

// Client talks to the Adjust dashboard API over an authenticated session.
// Sign-in is lazy: the first call that needs the API logs in and the
// session cookie rides in the http client's jar from then on.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	placeholdersURL string
	email           string
	password        string
	maxInFlight     int

	mu       sync.Mutex
	loggedIn bool
	user     user
	ids      map[callback.Identity]callbackID
}

// NewClient fails fast on missing credentials, mirroring the dashboard's
// refusal to serve anything unauthenticated. Pass a nil httpClient to get
// one with sane transport limits and a cookie jar.
func NewClient(baseURL, email, password string, httpClient *http.Client) (*Client, error) {
	if email == "" {
		return nil, errors.New("adjust: email not provided")
	}
	if password == "" {
		return nil, errors.New("adjust: password not provided")
	}
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         baseURL,
		placeholdersURL: placeholdersPageURL,
		email:           email,
		password:        password,
		maxInFlight:     defaultMaxInFlight,
		ids:             map[callback.Identity]callbackID{},
	}, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   20,
			TLSHandshakeTimeout:   3 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// List fetches every configured callback of every app, fanning the per-app
// calls out under a bounded group. Any fetch error fails the whole listing:
// reconciliation must never diff against a partial view of remote state.
func (c *Client) List(ctx context.Context) ([]callback.Record, error) {
	apps, err := c.fetchApps(ctx)
	if err != nil {
		return nil, err
	}

	records := make([][]callback.Record, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxInFlight)
	for i, a := range apps {
		i, a := i, a
		g.Go(func() error {
			appRecords, fetchErr := c.fetchCallbacks(gctx, a)
			if fetchErr != nil {
				return fmt.Errorf("listing callbacks for app %s: %w", a.Token, fetchErr)
			}
			records[i] = appRecords
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	var all []callback.Record
	for _, appRecords := range records {
		all = append(all, appRecords...)
	}
	callback.SortRecords(all)
	return all, nil
}

// Create configures the callback URL for an identity that currently has
// none. The dashboard addresses callbacks by their pre-existing trigger or
// event, so creation is a PUT like any other update.
func (c *Client) Create(ctx context.Context, record callback.Record) (callback.Record, error) {
	if err := c.setCallbackURL(ctx, record.Identity(), pushedURL(record)); err != nil {
		return callback.Record{}, err
	}
	return record, nil
}

func (c *Client) Update(ctx context.Context, id callback.Identity, record callback.Record) (callback.Record, error) {
	if err := c.setCallbackURL(ctx, id, pushedURL(record)); err != nil {
		return callback.Record{}, err
	}
	return record, nil
}

// Delete clears the callback URL. The dashboard has no DELETE verb for
// callbacks; an empty callback_url unconfigures the entry.
func (c *Client) Delete(ctx context.Context, id callback.Identity) error {
	return c.setCallbackURL(ctx, id, "")
}

// pushedURL is the value a record reconciles to remotely. Disabled records
// push an empty URL, which the dashboard treats as unconfigured.
func pushedURL(record callback.Record) string {
	if !record.Enabled {
		return ""
	}
	return record.URL
}

func (c *Client) setCallbackURL(ctx context.Context, id callback.Identity, url string) error {
	cid, err := c.resolveID(ctx, id)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("dashboard/api/apps/%s/event_types/%s/callback", id.AppToken, cid.pathSegment())
	return c.doJSON(ctx, http.MethodPut, path, updateCallbackRequest{CallbackURL: url}, nil)
}

// resolveID maps an identity to the id the dashboard addresses it by.
// Standard kinds are their own id; custom event callbacks carry a numeric
// id that has to be looked up in the app's callback list (cached per app).
func (c *Client) resolveID(ctx context.Context, id callback.Identity) (callbackID, error) {
	if id.Kind != callback.KindEvent {
		return callbackID{Kind: id.Kind}, nil
	}

	c.mu.Lock()
	cid, ok := c.ids[id]
	c.mu.Unlock()
	if ok {
		return cid, nil
	}

	if _, err := c.fetchCallbacks(ctx, app{Token: id.AppToken}); err != nil {
		return callbackID{}, err
	}

	c.mu.Lock()
	cid, ok = c.ids[id]
	c.mu.Unlock()
	if !ok {
		return callbackID{}, fmt.Errorf("%s: %w", id, ErrUnknownCallback)
	}
	return cid, nil
}

func (c *Client) fetchApps(ctx context.Context) ([]app, error) {
	var response appsResponse
	if err := c.doJSON(ctx, http.MethodGet, "dashboard/api/apps", nil, &response); err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	return response.Apps, nil
}

// fetchCallbacks returns the app's configured callbacks and refreshes the
// identity-to-id cache as a side effect. Callbacks without a URL exist on
// the dashboard for every possible trigger; only configured ones become
// records.
func (c *Client) fetchCallbacks(ctx context.Context, a app) ([]callback.Record, error) {
	var raw []rawCallback
	path := fmt.Sprintf("dashboard/api/apps/%s/callbacks", a.Token)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, rc := range raw {
		c.ids[rc.identity(a.Token)] = rc.ID
	}
	c.mu.Unlock()

	var records []callback.Record
	for _, rc := range raw {
		if rc.URL == "" {
			continue
		}
		records = append(records, rc.toRecord(a))
	}
	return records, nil
}

func (c *Client) signIn(ctx context.Context) error {
	request := signInRequest{User: credentials{Email: c.email, Password: c.password, RememberMe: true}}
	if err := c.doRequest(ctx, http.MethodPost, signInPath, request, &c.user); err != nil {
		return fmt.Errorf("signing in: %w", err)
	}
	log.WithField("email", c.email).Debug("Signed in to the Adjust dashboard")
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	if err := c.signIn(ctx); err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	return c.doRequest(ctx, method, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request for %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Path: path}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

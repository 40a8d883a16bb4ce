package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/berrylist/backend/internal/storage/models"
)

// ClientConfig holds the configuration for the realtime store API.
type ClientConfig struct {
	// BaseURL is the store service base URL, e.g. https://store.example.com
	BaseURL string

	// Token is the bearer token for API authentication
	Token string

	// Timeout for API requests
	Timeout time.Duration
}

// Client talks to the realtime store service over HTTP, with a websocket
// subscription for pushed snapshots. The wire layout mirrors the collection
// layout: users/{userID}/events/{eventID}.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new remote store client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// collection is the wire form of a user partition: event records keyed by id.
type collection map[string]models.Event

// ReadAll implements Store.
func (c *Client) ReadAll(ctx context.Context, userID string) ([]models.Event, error) {
	req, err := c.newRequest(ctx, "GET", c.eventsPath(userID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No partition yet: a user with no events
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var coll collection
	if err := json.NewDecoder(resp.Body).Decode(&coll); err != nil {
		return nil, fmt.Errorf("decoding event collection: %w", err)
	}

	events := make([]models.Event, 0, len(coll))
	for id, e := range coll {
		e.ID = id
		events = append(events, e)
	}
	models.SortEvents(events)
	return events, nil
}

// WriteAll implements Store. The whole partition is replaced and every
// record carries a fresh updatedAt.
func (c *Client) WriteAll(ctx context.Context, userID string, events []models.Event) error {
	now := time.Now()
	coll := make(collection, len(events))
	for _, e := range events {
		e.Stamp(now)
		coll[e.ID] = e
	}

	return c.write(ctx, "PUT", c.eventsPath(userID), coll)
}

// WriteOne implements Store.
func (c *Client) WriteOne(ctx context.Context, userID string, event models.Event) error {
	return c.write(ctx, "PUT", c.eventPath(userID, event.ID), event)
}

// UpdateOne implements Store.
func (c *Client) UpdateOne(ctx context.Context, userID string, event models.Event) error {
	return c.write(ctx, "PATCH", c.eventPath(userID, event.ID), event)
}

// DeleteOne implements Store.
func (c *Client) DeleteOne(ctx context.Context, userID string, eventID string) error {
	req, err := c.newRequest(ctx, "DELETE", c.eventPath(userID, eventID), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// Deleting an already-deleted record is not an error
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return c.apiError(resp)
	}

	return nil
}

// Subscribe implements Store. It dials the watch endpoint and delivers a
// snapshot for every message until Unsubscribe is called or the connection
// drops.
func (c *Client) Subscribe(ctx context.Context, userID string, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error) {
	wsURL, err := c.watchURL(userID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing watch endpoint: %v", ErrUnavailable, err)
	}

	sub := &clientSubscription{conn: conn}
	go sub.readLoop(onSnapshot, onError)
	return sub, nil
}

type clientSubscription struct {
	conn *websocket.Conn
	once sync.Once
}

func (sub *clientSubscription) readLoop(onSnapshot SnapshotFunc, onError ErrorFunc) {
	for {
		_, message, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if onError != nil {
					onError(fmt.Errorf("%w: watch connection: %v", ErrUnavailable, err))
				}
			}
			return
		}

		var coll collection
		if err := json.Unmarshal(message, &coll); err != nil {
			log.Printf("Dropping malformed snapshot: %v", err)
			continue
		}

		events := make([]models.Event, 0, len(coll))
		for id, e := range coll {
			e.ID = id
			events = append(events, e)
		}
		models.SortEvents(events)
		onSnapshot(Snapshot{Events: events})
	}
}

// Unsubscribe implements Subscription. Safe to call multiple times.
func (sub *clientSubscription) Unsubscribe() {
	sub.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		sub.conn.Close()
	})
}

func (c *Client) eventsPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/events"
}

func (c *Client) eventPath(userID, eventID string) string {
	return c.eventsPath(userID) + "/" + url.PathEscape(eventID)
}

func (c *Client) watchURL(userID string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.eventsPath(userID) + "/watch"
	return u.String(), nil
}

func (c *Client) write(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return c.apiError(resp)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d: %s", ErrNotAuthenticated, resp.StatusCode, body)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
}

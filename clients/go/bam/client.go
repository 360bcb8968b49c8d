// Package bam provides a small client for the BAM realtime backend: the
// authenticated REST surface plus the live websocket feed.
package bam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a BAM API client. Token is a JWT issued by the auth service
// (or cmd/gentoken during development).
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Zone mirrors the server's favorite zone resource.
type Zone struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	RadiusMeters  float64 `json:"radius_meters"`
	NotifyOnEnter bool    `json:"notify_on_enter"`
	NotifyOnExit  bool    `json:"notify_on_exit"`
}

// Alert mirrors the server's geofence alert resource.
type Alert struct {
	ID        string    `json:"id"`
	ZoneID    string    `json:"zone_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// SubmitLocation reports a GPS fix. The server evaluates geofences and
// proximity asynchronously.
func (c *Client) SubmitLocation(ctx context.Context, lat, lon, accuracy float64) error {
	return c.do(ctx, http.MethodPost, "/locations", map[string]any{
		"latitude":        lat,
		"longitude":       lon,
		"accuracy_meters": accuracy,
	}, nil)
}

// CreateZone registers a favorite zone.
func (c *Client) CreateZone(ctx context.Context, zone *Zone) (*Zone, error) {
	var created Zone
	if err := c.do(ctx, http.MethodPost, "/zones", zone, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListZones returns the caller's favorite zones.
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	var zones []Zone
	if err := c.do(ctx, http.MethodGet, "/zones", nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// ListAlerts returns the caller's geofence alerts, most recent first.
func (c *Client) ListAlerts(ctx context.Context, unreadOnly bool) ([]Alert, error) {
	path := "/alerts"
	if unreadOnly {
		path += "?unread=true"
	}
	var alerts []Alert
	if err := c.do(ctx, http.MethodGet, path, nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Event is one message from the live feed. "type" and "timestamp" are
// always present.
type Event map[string]any

// Type returns the event's type field.
func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Feed is a live websocket connection to the server.
type Feed struct {
	conn *websocket.Conn
}

// Connect opens the websocket feed. The JWT rides in the query string, the
// same way a browser client would send it.
func (c *Client) Connect(ctx context.Context) (*Feed, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(c.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Feed{conn: conn}, nil
}

// Next blocks until the next event arrives.
func (f *Feed) Next() (Event, error) {
	var ev Event
	if err := f.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Join enters an incident room.
func (f *Feed) Join(roomID string) error {
	return f.conn.WriteJSON(map[string]any{"action": "join", "room_id": roomID})
}

// Leave exits an incident room.
func (f *Feed) Leave(roomID string) error {
	return f.conn.WriteJSON(map[string]any{"action": "leave", "room_id": roomID})
}

// SetStatus updates the presence status (online, away, busy).
func (f *Feed) SetStatus(status string) error {
	return f.conn.WriteJSON(map[string]any{"action": "status", "status": status})
}

// SetTyping reports the typing indicator for a room.
func (f *Feed) SetTyping(roomID string, typing bool) error {
	return f.conn.WriteJSON(map[string]any{"action": "typing", "room_id": roomID, "typing": typing})
}

// Close closes the feed.
func (f *Feed) Close() error {
	return f.conn.Close()
}

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// EntryPayload is the wire representation of an entry sent to the
// backend
type EntryPayload struct {
	ClientID      string  `json:"client_id"`
	OwnerID       string  `json:"owner_id"`
	Kind          string  `json:"kind"`
	Day           string  `json:"day,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit,omitempty"`
	Text          string  `json:"text,omitempty"`
	RecordedAt    string  `json:"recorded_at"`
	Deleted       bool    `json:"deleted,omitempty"`
}

// EntryResponse is the backend acknowledgment for an entry mutation
type EntryResponse struct {
	RemoteID  string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateEntry posts a new entry and returns the backend-assigned ID
func (c *Client) CreateEntry(ctx context.Context, payload EntryPayload) (string, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/v1/entries",
		Body:   payload,
	})
	if err != nil {
		return "", err
	}

	var ack EntryResponse
	if err := resp.Decode(&ack); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	if ack.RemoteID == "" {
		// A wrong-but-valid-looking ID is worse than a loud failure
		return "", fmt.Errorf("create response missing remote id")
	}
	return ack.RemoteID, nil
}

// UpdateEntry patches an existing remote entry
func (c *Client) UpdateEntry(ctx context.Context, remoteID string, payload EntryPayload) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/v1/entries/" + remoteID,
		Body:   payload,
	})
	return err
}

// DeleteEntry removes a remote entry
func (c *Client) DeleteEntry(ctx context.Context, remoteID string) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/v1/entries/" + remoteID,
	})
	return err
}

package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Submitter delivers a request to a worker.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Response, error)
}

// RemoteError is a response the worker answered with ok=false.
type RemoteError struct {
	Type   RequestType
	Reason string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("mirror %s: %s", e.Type, e.Reason)
}

type Client struct {
	worker Submitter
}

func NewClient(worker Submitter) *Client {
	return &Client{worker: worker}
}

func (c *Client) Export(ctx context.Context) (Snapshot, error) {
	value, err := c.call(ctx, TypeExport, nil)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(value, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode export value: %w", err)
	}
	return snap, nil
}

func (c *Client) Reset(ctx context.Context) error {
	_, err := c.call(ctx, TypeReset, nil)
	return err
}

func (c *Client) Import(ctx context.Context, snap Snapshot) error {
	_, err := c.call(ctx, TypeImport, snap)
	return err
}

func (c *Client) call(ctx context.Context, typ RequestType, args any) (json.RawMessage, error) {
	req := Request{ID: uuid.NewString(), Type: typ}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode %s args: %w", typ, err)
		}
		req.Args = raw
	}

	resp, err := c.worker.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", typ, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("mirror %s: response id %q does not match request %q", typ, resp.ID, req.ID)
	}
	if !resp.OK {
		return nil, &RemoteError{Type: typ, Reason: resp.Reason}
	}
	return resp.Value, nil
}

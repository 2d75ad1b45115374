// Package tin is a Go client for the tin-server Decider service.
package tin

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const decideMethod = "/tin.v1.Decider/Decide"

// Decision is the server's answer for one ticker.
type Decision struct {
	Ticker          string
	Action          string // "buy", "sell" or "no_action"
	Quantity        int64
	TargetQuantity  int64
	CurrentQuantity int64
}

// Client provides a Go SDK for interacting with tin-server.
type Client struct {
	target string
	conn   *grpc.ClientConn
}

// NewClient creates a client for the server at target. Without options the
// connection is insecure.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	return &Client{target: target, conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Decide asks the server what to do with ticker. A nil current lets the
// server look the holding up at its broker.
func (c *Client) Decide(ctx context.Context, ticker string, current *int64) (*Decision, error) {
	fields := map[string]any{"ticker": ticker}
	if current != nil {
		fields["current_quantity"] = *current
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, decideMethod, req, resp); err != nil {
		return nil, fmt.Errorf("Decide(%s): %w", ticker, err)
	}

	f := resp.GetFields()
	return &Decision{
		Ticker:          f["ticker"].GetStringValue(),
		Action:          f["action"].GetStringValue(),
		Quantity:        int64(f["quantity"].GetNumberValue()),
		TargetQuantity:  int64(f["target_quantity"].GetNumberValue()),
		CurrentQuantity: int64(f["current_quantity"].GetNumberValue()),
	}, nil
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/hubgate/pkg/httpclient"
	"github.com/nao1215/hubgate/pkg/message"
)

// Client はワーカーのRPCエンドポイントを呼び出すクライアント。
type Client struct {
	client *httpclient.Client
}

// NewClient はbaseURLのワーカーに接続するClientを生成する。
func NewClient(baseURL string, timeout time.Duration) *Client {
	var opts []httpclient.Option
	if timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(timeout))
	}
	return &Client{client: httpclient.New(baseURL, opts...)}
}

// Call はEnvelopeを送信して応答を返す。
func (c *Client) Call(ctx context.Context, pattern message.Pattern, data any) (*message.Reply, error) {
	env, err := message.New(pattern, data)
	if err != nil {
		return nil, err
	}

	var reply message.Reply
	if err := c.client.PostJSON(ctx, "/rpc", env, &reply); err != nil {
		return nil, fmt.Errorf("%s の呼び出しに失敗: %w", pattern, err)
	}
	return &reply, nil
}

// Ping はservice.pingを送信し、応答データを返す。
func (c *Client) Ping(ctx context.Context, from string) (*message.PingReply, error) {
	reply, err := c.Call(ctx, message.PatternPing, message.PingRequest{From: from})
	if err != nil {
		return nil, err
	}
	return message.DecodeReply[message.PingReply](reply)
}

package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

const (
	defaultReconnectDelay = 3 * time.Second
	defaultMaxReconnects  = 5
)

var ErrTooManyReconnects = errors.New("too many reconnect attempts")

// Update is one decoded change of a watched project account. Err is set when
// the notification arrived but the account image did not decode.
type Update struct {
	Slot    uint64
	Project *unicorn.Project
	Err     error
}

type Config struct {
	Endpoint       string
	Commitment     string
	ReconnectDelay time.Duration
	MaxReconnects  int
}

// AccountWatcher follows a project account over accountSubscribe.
type AccountWatcher struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *logrus.Entry
}

func NewAccountWatcher(cfg Config, log *logrus.Entry) *AccountWatcher {
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	return &AccountWatcher{cfg: cfg, dialer: websocket.DefaultDialer, log: log}
}

// Watch delivers updates of address to handler until ctx is done. Dropped
// connections are re-established; Watch gives up after MaxReconnects
// consecutive failures.
func (w *AccountWatcher) Watch(ctx context.Context, address solana.PublicKey, handler func(Update)) error {
	log := w.log.WithField("project", address.String())
	attempts := 0
	for {
		received, err := w.session(ctx, address, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			attempts = 0
		}
		attempts++
		log.WithError(err).WithField("attempt", attempts).Warn("Account subscription dropped")
		if attempts >= w.cfg.MaxReconnects {
			return fmt.Errorf("%w: %v", ErrTooManyReconnects, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

// session runs one connection. It reports whether any notification arrived.
func (w *AccountWatcher) session(ctx context.Context, address solana.PublicKey, handler func(Update)) (bool, error) {
	c, _, err := w.dialer.DialContext(ctx, w.cfg.Endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	// unblock ReadMessage on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	if err := c.WriteJSON(subscribeRequest(address, w.cfg.Commitment)); err != nil {
		return false, fmt.Errorf("failed to send subscription message: %w", err)
	}

	received := false
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("error reading message: %w", err)
		}

		msg, err := parseMessage(message)
		if err != nil {
			w.log.WithError(err).Warn("Failed to parse message")
			continue
		}
		switch {
		case msg.Error != nil:
			return received, fmt.Errorf("subscription rejected: %s", msg.Error.Message)
		case msg.Subscribed:
			w.log.WithField("subscription_id", msg.SubscriptionID).Info("Subscription confirmed")
		case msg.Notification != nil:
			received = true
			handler(decodeNotification(msg.Notification))
		}
	}
}

func subscribeRequest(address solana.PublicKey, commitment string) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "accountSubscribe",
		"params": []interface{}{
			address.String(),
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": commitment,
			},
		},
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type accountNotification struct {
	Result struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value *struct {
			Data     []string `json:"data"`
			Lamports uint64   `json:"lamports"`
			Owner    string   `json:"owner"`
		} `json:"value"`
	} `json:"result"`
	Subscription uint64 `json:"subscription"`
}

// message is the relevant part of anything the server sends.
type message struct {
	// Subscribed marks a confirmation; ids start at 0 on some validators
	Subscribed     bool
	SubscriptionID uint64
	Notification   *accountNotification
	Error          *rpcError
}

func parseMessage(raw []byte) (message, error) {
	var envelope struct {
		ID     *int            `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Params json.RawMessage `json:"params"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return message{}, err
	}

	switch {
	case envelope.Error != nil:
		return message{Error: envelope.Error}, nil
	case envelope.Method == "accountNotification":
		var n accountNotification
		if err := json.Unmarshal(envelope.Params, &n); err != nil {
			return message{}, fmt.Errorf("notification params: %w", err)
		}
		return message{Notification: &n}, nil
	case envelope.ID != nil && len(envelope.Result) > 0:
		var id uint64
		if err := json.Unmarshal(envelope.Result, &id); err != nil {
			return message{}, fmt.Errorf("subscription result: %w", err)
		}
		return message{Subscribed: true, SubscriptionID: id}, nil
	}
	return message{}, nil
}

func decodeNotification(n *accountNotification) Update {
	u := Update{Slot: n.Result.Context.Slot}
	v := n.Result.Value
	if v == nil {
		u.Err = errors.New("account closed")
		return u
	}
	if len(v.Data) != 2 || v.Data[1] != "base64" {
		u.Err = fmt.Errorf("unexpected data encoding %v", v.Data)
		return u
	}
	raw, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		u.Err = fmt.Errorf("failed to decode base64: %w", err)
		return u
	}
	u.Project, u.Err = unicorn.DecodeProject(raw)
	return u
}

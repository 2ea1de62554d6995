// Package detectresponder answers diagram classification requests over NATS.
//
// Requests and replies are JSON. A request carries the diagram text and an
// optional detector config; the reply carries the category key and locator,
// or an error when a detector failed.
package detectresponder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/service"
)

// Request is the payload published on the detect subject.
type Request struct {
	// ID is echoed in the reply. Generated when empty.
	ID     string         `json:"id,omitempty"`
	Text   string         `json:"text"`
	Config map[string]any `json:"config,omitempty"`
}

// Response is the reply payload.
type Response struct {
	ID      string `json:"id"`
	Key     string `json:"key,omitempty"`
	Locator string `json:"locator,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Detector classifies a single text. *service.Service satisfies it.
type Detector interface {
	Detect(text string, cfg detect.Config) (service.Result, error)
}

// Responder turns requests into replies.
type Responder struct {
	detector Detector
	logger   *slog.Logger
}

// New creates a responder around d.
func New(d Detector, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{detector: d, logger: logger}
}

// Reply decodes a request and encodes the reply. Malformed requests get an
// error reply rather than none, so requesters never wait for a timeout.
func (r *Responder) Reply(data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return r.encode(Response{ID: uuid.New().String(), Error: fmt.Sprintf("decode request: %v", err)})
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	var cfg detect.Config
	if req.Config != nil {
		cfg = detect.Config(req.Config)
	}

	res, err := r.detector.Detect(req.Text, cfg)
	if err != nil {
		return r.encode(Response{ID: req.ID, Error: err.Error()})
	}
	return r.encode(Response{ID: req.ID, Key: res.Key, Locator: res.Locator})
}

func (r *Responder) encode(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("Failed to encode reply", "id", resp.ID, "error", err)
		return nil
	}
	return data
}

// Handle is a nats.MsgHandler replying to msg.
func (r *Responder) Handle(msg *nats.Msg) {
	if msg.Reply == "" {
		r.logger.Debug("Dropping request without reply subject", "subject", msg.Subject)
		return
	}
	if err := msg.Respond(r.Reply(msg.Data)); err != nil {
		r.logger.Warn("Failed to respond", "subject", msg.Subject, "error", err)
	}
}

// Subscribe starts answering requests on subject. Responders sharing a
// non-empty queue split the traffic.
func (r *Responder) Subscribe(nc *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = nc.Subscribe(subject, r.Handle)
	} else {
		sub, err = nc.QueueSubscribe(subject, queue, r.Handle)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	r.logger.Info("Detect responder listening", "subject", subject, "queue", queue)
	return sub, nil
}

// Connect opens a NATS connection with reconnect settings suited to a
// long-running responder.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// SendRequest sends one classification request and waits for the reply.
func SendRequest(ctx context.Context, nc *nats.Conn, subject string, req Request) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &resp, nil
}

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Bus is the slice of the MQTT client the request/reply layer needs.
// *Client satisfies it; tests substitute an in-memory implementation.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
}

var _ Bus = (*Client)(nil)

// request is the wire envelope for a slot call.
type request struct {
	ID      string          `json:"id"`
	ReplyTo string          `json:"reply_to"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// response is the wire envelope for a slot reply. Exactly one of Result and
// Error is set.
type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Requester issues slot calls over the broker and matches replies to callers
// by request id.
//
// A single reply subscription (karabo/reply/<clientID>/+) serves all
// outstanding calls; concurrent calls from multiple goroutines are safe.
type Requester struct {
	bus      Bus
	clientID string
	qos      byte

	mu         sync.Mutex
	pending    map[string]chan response
	subscribed bool
}

// NewRequester creates a requester identified by clientID on the broker.
func NewRequester(bus Bus, clientID string, qos byte) *Requester {
	return &Requester{
		bus:      bus,
		clientID: clientID,
		qos:      qos,
		pending:  make(map[string]chan response),
	}
}

// Call invokes a slot on a service instance and waits for the reply.
//
// args is JSON-marshalled into the request envelope. The returned raw
// message is the slot's result payload; a slot-side failure comes back as
// an error wrapping ErrSlotFailed with the remote message.
//
// The call is abandoned when ctx is done; a late reply is then discarded.
func (r *Requester) Call(ctx context.Context, instanceID, slot string, args any) (json.RawMessage, error) {
	if err := r.ensureReplySubscription(); err != nil {
		return nil, err
	}

	var rawArgs json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("mqtt: marshalling slot args: %w", err)
		}
		rawArgs = b
	}

	id := uuid.NewString()
	req := request{
		ID:      id,
		ReplyTo: Topics{}.SlotReply(r.clientID, id),
		Args:    rawArgs,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mqtt: marshalling slot request: %w", err)
	}

	ch := make(chan response, 1)
	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	topic := Topics{}.SlotRequest(instanceID, slot)
	if err := r.bus.Publish(topic, payload, r.qos, false); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("mqtt: slot %s on %s: %w", slot, instanceID, ctx.Err())
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrSlotFailed, resp.Error)
		}
		return resp.Result, nil
	}
}

// ensureReplySubscription subscribes to the caller's reply subtree once.
func (r *Requester) ensureReplySubscription() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribed {
		return nil
	}
	pattern := Topics{}.AllSlotReplies(r.clientID)
	if err := r.bus.Subscribe(pattern, r.qos, r.handleReply); err != nil {
		return err
	}
	r.subscribed = true
	return nil
}

func (r *Requester) handleReply(_ string, payload []byte) error {
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("mqtt: decoding slot reply: %w", err)
	}

	r.mu.Lock()
	ch, ok := r.pending[resp.ID]
	r.mu.Unlock()
	if !ok {
		// Caller timed out or never existed; drop the reply.
		return nil
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

// Handler processes a slot call. The returned value is JSON-marshalled into
// the reply; a returned error is sent back as the reply's error string.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type callerKey struct{}

// CallerID returns the id of the client that issued the slot call being
// served, derived from its reply topic. Empty outside a slot handler.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// callerFromReplyTo extracts the client id segment of a reply topic
// (karabo/reply/<clientID>/<requestID>).
func callerFromReplyTo(replyTo string) string {
	parts := strings.Split(replyTo, "/")
	if len(parts) != 4 || parts[0]+"/"+parts[1] != TopicPrefixReply {
		return ""
	}
	return parts[2]
}

// Responder serves slots for one service instance.
type Responder struct {
	bus        Bus
	instanceID string
	qos        byte

	mu    sync.Mutex
	slots []string
}

// NewResponder creates a responder serving slots addressed to instanceID.
func NewResponder(bus Bus, instanceID string, qos byte) *Responder {
	return &Responder{bus: bus, instanceID: instanceID, qos: qos}
}

// Handle registers a handler for a slot and subscribes to its request topic.
func (s *Responder) Handle(slot string, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	topic := Topics{}.SlotRequest(s.instanceID, slot)
	err := s.bus.Subscribe(topic, s.qos, func(_ string, payload []byte) error {
		return s.serve(fn, payload)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.slots = append(s.slots, slot)
	s.mu.Unlock()
	return nil
}

// Close unsubscribes every registered slot.
func (s *Responder) Close() error {
	s.mu.Lock()
	slots := s.slots
	s.slots = nil
	s.mu.Unlock()

	var firstErr error
	for _, slot := range slots {
		if err := s.bus.Unsubscribe(Topics{}.SlotRequest(s.instanceID, slot)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// serve decodes one request, runs the handler and publishes the reply.
func (s *Responder) serve(fn Handler, payload []byte) error {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("mqtt: decoding slot request: %w", err)
	}
	if req.ReplyTo == "" {
		return fmt.Errorf("mqtt: slot request %s has no reply topic", req.ID)
	}

	resp := response{ID: req.ID}
	ctx := context.WithValue(context.Background(), callerKey{}, callerFromReplyTo(req.ReplyTo))
	result, err := fn(ctx, req.Args)
	if err != nil {
		resp.Error = err.Error()
	} else if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			resp.Error = fmt.Sprintf("encoding result: %v", err)
		} else {
			resp.Result = b
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("mqtt: marshalling slot reply: %w", err)
	}
	return s.bus.Publish(req.ReplyTo, out, s.qos, false)
}

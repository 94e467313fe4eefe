package channel

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns envelopes into frame bodies.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

var (
	JSON        Codec = jsonCodec{}
	MessagePack Codec = msgpackCodec{}
)

// CodecByName returns the codec for "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	for _, c := range []Codec{JSON, MessagePack} {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// envelope is the unit sent over the wire. Replies always carry a status, calls never do.
type envelope struct {
	ID      string      `json:"id" msgpack:"id"`
	Method  string      `json:"method,omitempty" msgpack:"method,omitempty"`
	Args    interface{} `json:"args" msgpack:"args"`
	Status  string      `json:"status,omitempty" msgpack:"status,omitempty"`
	Result  interface{} `json:"result" msgpack:"result"`
	Code    string      `json:"code,omitempty" msgpack:"code,omitempty"`
	Message string      `json:"message,omitempty" msgpack:"message,omitempty"`
	Details interface{} `json:"details,omitempty" msgpack:"details,omitempty"`
}

func callEnvelope(id, method string, args interface{}) envelope {
	return envelope{ID: id, Method: method, Args: args}
}

func replyEnvelope(id string, r Result) envelope {
	return envelope{
		ID:      id,
		Status:  r.Status.String(),
		Result:  r.Value,
		Code:    r.Code,
		Message: r.Message,
		Details: r.Details,
	}
}

func (e envelope) isCall() bool {
	return e.Status == ""
}

func (e envelope) result() (Result, error) {
	st, err := parseStatus(e.Status)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Status:  st,
		Value:   e.Result,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}, nil
}

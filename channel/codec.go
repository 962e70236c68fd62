package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/hupe1980/taskmesh/core"
)

// Codec serializes envelopes for network backends.
type Codec interface {
	ContentType() string
	Marshal(env core.Envelope) ([]byte, error)
	Unmarshal(data []byte) (core.Envelope, error)
}

type jsonCodec struct{}

// JSON returns the default codec producing the stable JSON envelope schema.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(env core.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.CorrelationID, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte) (core.Envelope, error) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, env.Validate()
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec. Field names follow the JSON schema.
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Marshal(env core.Envelope) ([]byte, error) {
	data, err := c.enc.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.CorrelationID, err)
	}
	return data, nil
}

func (c cborCodec) Unmarshal(data []byte) (core.Envelope, error) {
	var env core.Envelope
	if err := c.dec.Unmarshal(data, &env); err != nil {
		return core.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, env.Validate()
}

// CodecByName resolves "json" (or empty) and "cbor".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON(), nil
	case "cbor":
		return CBOR()
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Encode serializes an envelope with the stable JSON schema.
func Encode(env core.Envelope) ([]byte, error) { return JSON().Marshal(env) }

// Decode parses and validates a JSON envelope.
func Decode(data []byte) (core.Envelope, error) { return JSON().Unmarshal(data) }

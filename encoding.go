package rset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type EncodingMethod int

const (
	MsgPack EncodingMethod = iota
	JSON
)

func (enc EncodingMethod) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("EncodingMethod(%d)", int(enc))
	}
}

func ParseEncodingMethod(s string) (EncodingMethod, error) {
	switch s {
	case "msgpack", "mp":
		return MsgPack, nil
	case "json", "":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

// Marshal encodes a generic tree. Map keys are sorted in both encodings.
func (enc EncodingMethod) Marshal(v any) ([]byte, error) {
	switch enc {
	case MsgPack:
		var buf bytes.Buffer
		e := msgpack.GetEncoder()
		e.Reset(&buf)
		e.SetSortMapKeys(true)
		err := e.Encode(v)
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
		}
		return buf.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
		}
		return raw, nil
	default:
		panic("unsupported encoding")
	}
}

// Unmarshal decodes data into a generic tree of maps, slices and scalars.
func (enc EncodingMethod) Unmarshal(data []byte) (any, error) {
	var v any
	switch enc {
	case MsgPack:
		dec := msgpack.GetDecoder()
		dec.Reset(bytes.NewReader(data))
		err := dec.Decode(&v)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, dataErrf(enc.String(), data, err, "failed to decode msgpack")
		}
	case JSON:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, dataErrf(enc.String(), data, err, "failed to decode JSON")
		}
	default:
		panic("unsupported encoding")
	}
	return v, nil
}

// Encode serializes tree into the envelope and encodes it with method.
func (s *Serializer) Encode(method EncodingMethod, tree any) ([]byte, error) {
	env, err := s.Serialize(tree)
	if err != nil {
		return nil, err
	}
	return method.Marshal(env)
}

// Decode reverses Encode.
func (s *Serializer) Decode(method EncodingMethod, data []byte) (any, error) {
	env, err := method.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return s.Deserialize(env)
}

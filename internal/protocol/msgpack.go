package protocol

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

type msgpackFormat struct{}

type msgpackEnvelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

func (msgpackFormat) marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackFormat) unmarshal(data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.DisallowUnknownFields(true)

	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() != 0 {
		return errTrailingData
	}
	return nil
}

func (f msgpackFormat) decodeEnvelope(data []byte) (envelope, error) {
	var env msgpackEnvelope
	if err := f.unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	return envelope{Type: env.Type, Payload: env.Payload}, nil
}

func (msgpackFormat) isNull(raw []byte) bool {
	return len(raw) == 1 && raw[0] == msgpcode.Nil
}

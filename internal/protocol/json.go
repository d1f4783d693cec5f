package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
)

type jsonFormat struct{}

type jsonEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (jsonFormat) marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonFormat) unmarshal(data []byte, v interface{}) error {
	if err := exactKeys(data, reflect.TypeOf(v)); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

func (f jsonFormat) decodeEnvelope(data []byte) (envelope, error) {
	var env jsonEnvelope
	if err := f.unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	return envelope{Type: env.Type, Payload: env.Payload}, nil
}

func (jsonFormat) isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// exactKeys rejects object keys that encoding/json would only match to a
// field case-insensitively. Malformed input is left for the decoder to report.
func exactKeys(data []byte, t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == rawMessageType {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil
	}

	fields := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields[name] = t.Field(i).Type
		}
	}

	for key, raw := range obj {
		ft, ok := fields[key]
		if !ok {
			return fmt.Errorf("json: unknown field %q", key)
		}
		if err := exactKeys(raw, ft); err != nil {
			return err
		}
	}
	return nil
}

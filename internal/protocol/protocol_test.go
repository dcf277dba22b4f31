package protocol

import "testing"

type testPayload struct {
	Foo string `json:"foo"`
	Bar int    `json:"bar"`
}

func TestProtocol_EncodeThenDecodeEnvelopeRoundTrips(t *testing.T) {
	p := New()

	data, err := p.Encode("test_event", testPayload{Foo: "x", Bar: 7})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	env, err := p.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Type != "test_event" {
		t.Errorf("Type = %q, want test_event", env.Type)
	}

	var out testPayload
	if err := p.DecodePayload(env, &out); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if out != (testPayload{Foo: "x", Bar: 7}) {
		t.Errorf("decoded payload = %+v, want {x 7}", out)
	}
}

func TestProtocol_DecodePayloadOnEmptyPayloadIsNoop(t *testing.T) {
	p := New()
	env := Envelope{Type: "resume_request"}

	var out testPayload
	if err := p.DecodePayload(env, &out); err != nil {
		t.Fatalf("expected no error decoding an empty payload, got %v", err)
	}
	if out != (testPayload{}) {
		t.Errorf("expected dst to remain zero-valued, got %+v", out)
	}
}

func TestProtocol_DecodeEnvelopeRejectsMalformedJSON(t *testing.T) {
	p := New()
	if _, err := p.DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatalf("expected an error decoding malformed JSON")
	}
}

func TestProtocol_MustEncodePanicsOnUnmarshalableValue(t *testing.T) {
	p := New()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustEncode to panic on an unmarshalable payload")
		}
	}()
	p.MustEncode("bad", func() {})
}

package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := SlaveStarted{UID: "slave-1", PID: 4242}
	if err := WriteFrame(&buf, KindSlaveStarted, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	env, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if env.Kind != KindSlaveStarted {
		t.Fatalf("kind = %q, want %q", env.Kind, KindSlaveStarted)
	}
	var got SlaveStarted
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(bufio.NewReader(&buf)); err == nil {
		t.Fatal("expected an error for an oversized declared length")
	}
}

func TestDecodeIOCheckPayloadPairShape(t *testing.T) {
	raw := json.RawMessage(`{"input":["1 2"],"expectedOutput":"3\n","name":"addition"}`)
	got, err := DecodeIOCheckPayload(raw)
	if err != nil {
		t.Fatalf("DecodeIOCheckPayload: %v", err)
	}
	if len(got.Input) != 1 || got.Input[0] != "1 2" || got.ExpectedOutput != "3\n" || got.Name != "addition" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeIOCheckPayloadTextShape(t *testing.T) {
	raw := json.RawMessage(`{"text":"1 2\n3\n"}`)
	got, err := DecodeIOCheckPayload(raw)
	if err != nil {
		t.Fatalf("DecodeIOCheckPayload: %v", err)
	}
	if len(got.Input) != 1 || got.Input[0] != "1 2" || got.ExpectedOutput != "3" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeIOCheckPayloadRejectsAmbiguousShape(t *testing.T) {
	raw := json.RawMessage(`{"input":["1"],"expectedOutput":"2\n","text":"1\n2\n"}`)
	if _, err := DecodeIOCheckPayload(raw); err == nil {
		t.Fatal("expected MalformedMessage for a payload carrying both shapes")
	}
}

func TestDecodeIOCheckPayloadRejectsEmptyShape(t *testing.T) {
	raw := json.RawMessage(`{}`)
	if _, err := DecodeIOCheckPayload(raw); err == nil {
		t.Fatal("expected MalformedMessage for a payload with neither shape")
	}
}

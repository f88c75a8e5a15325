package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"strings"

	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// MaxFrameBytes bounds a single frame's declared length, guarding against a
// corrupt or hostile length prefix forcing an unbounded allocation.
const MaxFrameBytes = 64 << 20 // 64 MiB

// WriteFrame encodes v as JSON and writes it to w as a single
// length-prefixed frame: a 4-byte big-endian length followed by the JSON
// bytes.
func WriteFrame(w io.Writer, kind Kind, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, errors.SlaveMalformedMessage, "marshal payload: %v", err)
	}
	env := Envelope{Kind: kind, Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, errors.SlaveMalformedMessage, "marshal envelope: %v", err)
	}
	if len(body) > MaxFrameBytes {
		return errors.Newf(errors.SlaveMalformedMessage, "frame too large: %d bytes", len(body))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame blocks until a complete frame is available on r, returning its
// envelope. It returns io.EOF if the connection closed cleanly between
// frames.
func ReadFrame(r *bufio.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return Envelope{}, errors.Newf(errors.SlaveMalformedMessage, "frame declares %d bytes, exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errors.Wrapf(err, errors.SlaveMalformedMessage, "unmarshal envelope: %v", err)
	}
	return env, nil
}

// ioCheckShape is used only to detect the ambiguous payload spec.md §9
// flags: a payload that supplies both the {input, expectedOutput} pair and
// the single {text} form must be rejected rather than guessed at. Input is
// a sequence of lines per spec.md §4.1/§6, matching
// StaticInputOutputCheck's List<String> input.
type ioCheckShape struct {
	Input          *[]string `json:"input"`
	ExpectedOutput *string   `json:"expectedOutput"`
	Name           string    `json:"name"`
	Text           *string   `json:"text"`
}

// IOCheckPayload is the decoded, unambiguous shape of an IO check's
// payload after DecodeIOCheckPayload has resolved which wire encoding was
// used.
type IOCheckPayload struct {
	Name           string
	Input          []string
	ExpectedOutput string
}

// DecodeIOCheckPayload accepts either of the two known wire shapes for an
// IO check:
//
//	{"input": ["...", "..."], "expectedOutput": "...", "name": "..."}
//	{"text": "..."}        (input lines then the expected output, newline-separated)
//
// A payload that mixes both shapes is rejected with SlaveMalformedMessage,
// per the Open Question resolution in DESIGN.md: never guess which the
// sender meant.
func DecodeIOCheckPayload(raw json.RawMessage) (IOCheckPayload, error) {
	var shape ioCheckShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return IOCheckPayload{}, errors.Wrapf(err, errors.SlaveMalformedMessage, "unmarshal IO check payload: %v", err)
	}
	pairGiven := shape.Input != nil || shape.ExpectedOutput != nil
	textGiven := shape.Text != nil
	switch {
	case pairGiven && textGiven:
		return IOCheckPayload{}, errors.New(errors.SlaveMalformedMessage).WithMessage("IO check payload carries both {input,expectedOutput} and {text}")
	case pairGiven:
		if shape.Input == nil || shape.ExpectedOutput == nil {
			return IOCheckPayload{}, errors.New(errors.SlaveMalformedMessage).WithMessage("IO check payload missing one of input/expectedOutput")
		}
		return IOCheckPayload{Name: shape.Name, Input: *shape.Input, ExpectedOutput: *shape.ExpectedOutput}, nil
	case textGiven:
		payload, err := splitIOText(*shape.Text)
		if err != nil {
			return IOCheckPayload{}, err
		}
		payload.Name = shape.Name
		return payload, nil
	default:
		return IOCheckPayload{}, errors.New(errors.SlaveMalformedMessage).WithMessage("IO check payload carries neither known shape")
	}
}

// splitIOText parses the {text} shorthand used by newer persisted checks:
// every line but the last is fed to stdin in order, the last line is the
// expected output.
func splitIOText(text string) (IOCheckPayload, error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) < 2 {
		return IOCheckPayload{}, errors.New(errors.SlaveMalformedMessage).WithMessage("IO check {text} payload has no newline separating input from expected output")
	}
	return IOCheckPayload{Input: lines[:len(lines)-1], ExpectedOutput: lines[len(lines)-1]}, nil
}

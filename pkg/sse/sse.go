// Package sse holds the wire contract of the answer stream shared by the
// server and the Go client: the frame shape, the token splitter both sides
// use to chunk an answer, the record writer and an incremental reader.
//
// A stream is a sequence of records, each one "data: <json frame>" followed
// by a blank line. Lines starting with ':' are heartbeats and carry nothing.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode"
)

// Frame types.
const (
	TypeToken    = "token"
	TypeCitation = "citation"
	TypeDone     = "done"
	TypeError    = "error"
)

// Frame is one record of the stream.
//
//   - token:    Content holds the next piece of the answer.
//   - citation: Citation holds one numbered citation.
//   - done:     Result holds the complete query payload.
//   - error:    Error describes why the stream ended early.
type Frame struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	Citation json.RawMessage `json:"citation,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    *FrameError     `json:"error,omitempty"`
}

// FrameError is the payload of an error frame. ConversationID is set when
// the question was stored and can be retried against that conversation.
type FrameError struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	Field          string `json:"field,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (e *FrameError) Error() string {
	if e.ConversationID != "" {
		return e.Code + ": " + e.Message + " (conversation " + e.ConversationID + ")"
	}
	return e.Code + ": " + e.Message
}

// SplitTokens cuts s into whitespace-delimited chunks. Each chunk keeps the
// whitespace that follows it, so concatenating the result yields s.
func SplitTokens(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if inSpace && !sp && i > start {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Write encodes f as one "data: <json>" record followed by a blank line.
func Write(w io.Writer, f Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(raw)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, raw...)
	buf = append(buf, '\n', '\n')
	_, err = w.Write(buf)
	return err
}

// WriteComment writes a ": text" heartbeat record.
func WriteComment(w io.Writer, text string) error {
	_, err := io.WriteString(w, ": "+text+"\n\n")
	return err
}

// ErrMalformed is returned for a data record that is not a JSON frame.
var ErrMalformed = errors.New("sse: malformed frame")

// Reader decodes frames from a stream one at a time.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next frame. It returns io.EOF once the stream ends
// cleanly between records.
func (r *Reader) Next() (Frame, error) {
	var data []string
	for {
		line, err := r.br.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				return decode(data)
			}
			return Frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return decode(data)
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		if errors.Is(err, io.EOF) {
			if len(data) > 0 {
				return decode(data)
			}
			return Frame{}, io.EOF
		}
	}
}

func decode(lines []string) (Frame, error) {
	var f Frame
	if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &f); err != nil || f.Type == "" {
		return Frame{}, ErrMalformed
	}
	return f, nil
}

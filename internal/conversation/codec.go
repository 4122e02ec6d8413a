package conversation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// Codec serializes an ordered turn sequence to and from a byte stream.
type Codec interface {
	// Name identifies the codec in logs
	Name() string

	// Encode writes every turn, in order, as one record each
	Encode(w io.Writer, turns []types.Turn) error

	// Decode reads records until EOF
	Decode(r io.Reader, opts DecodeOptions) ([]types.Turn, error)
}

// DecodeOptions controls malformed record handling
type DecodeOptions struct {
	Policy Policy
	// OnSkip is called for every record dropped under PolicyLenient
	OnSkip func(record int, err error)
}

// reject applies the policy to a malformed record. It returns a non-nil
// error when decoding must stop.
func (o DecodeOptions) reject(record int, err error) error {
	recErr := &RecordError{Record: record, Err: err}
	if o.Policy == PolicyLenient {
		if o.OnSkip != nil {
			o.OnSkip(record, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCorruptSession, recErr)
}

// CodecFor picks a codec from the file extension
func CodecFor(location string) Codec {
	if strings.EqualFold(filepath.Ext(location), ".cbor") {
		return CBORCodec{}
	}
	return JSONLCodec{}
}

// JSONLCodec stores one JSON object per line with a trailing newline
// after the last record.
type JSONLCodec struct{}

func (JSONLCodec) Name() string { return "jsonl" }

func (JSONLCodec) Encode(w io.Writer, turns []types.Turn) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, turn := range turns {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("encoding turn %d: %w", i+1, err)
		}
	}
	return nil
}

func (JSONLCodec) Decode(r io.Reader, opts DecodeOptions) ([]types.Turn, error) {
	reader := bufio.NewReader(r)
	var turns []types.Turn
	lineNo := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			raw := bytes.TrimSpace(line)
			if len(raw) > 0 {
				turn, err := decodeJSONRecord(raw)
				if err != nil {
					if stop := opts.reject(lineNo, err); stop != nil {
						return nil, stop
					}
				} else {
					turns = append(turns, turn)
				}
			}
		}
		if readErr == io.EOF {
			return turns, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading line %d: %w", lineNo+1, readErr)
		}
	}
}

func decodeJSONRecord(raw []byte) (types.Turn, error) {
	var turn types.Turn
	if err := json.Unmarshal(raw, &turn); err != nil {
		return types.Turn{}, err
	}
	if err := turn.Validate(); err != nil {
		return types.Turn{}, err
	}
	return turn, nil
}

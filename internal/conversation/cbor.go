package conversation

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// cborEnc uses Core Deterministic Encoding so equal sessions produce
// identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("conversation: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("conversation: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec stores a session as a CBOR sequence (RFC 8742), one map per turn.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Encode(w io.Writer, turns []types.Turn) error {
	enc := cborEnc.NewEncoder(w)
	for i, turn := range turns {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("encoding turn %d: %w", i+1, err)
		}
	}
	return nil
}

// Decode reads items until EOF. A syntactically broken item cannot be
// skipped because the stream has no resync point, so under PolicyLenient
// decoding stops there and keeps the turns read so far.
func (CBORCodec) Decode(r io.Reader, opts DecodeOptions) ([]types.Turn, error) {
	dec := cborDec.NewDecoder(r)
	var turns []types.Turn

	for item := 1; ; item++ {
		var turn types.Turn
		err := dec.Decode(&turn)
		if errors.Is(err, io.EOF) {
			return turns, nil
		}
		if err != nil {
			var typeErr *cbor.UnmarshalTypeError
			if stop := opts.reject(item, err); stop != nil {
				return nil, stop
			}
			if errors.As(err, &typeErr) {
				continue
			}
			return turns, nil
		}
		if err := turn.Validate(); err != nil {
			if stop := opts.reject(item, err); stop != nil {
				return nil, stop
			}
			continue
		}
		turns = append(turns, turn)
	}
}

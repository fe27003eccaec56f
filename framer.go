package usftp

import (
	"encoding/binary"
	"io"
)

// frame is one length-prefixed envelope on the wire:
//
//	uint32             payload_length
//	byte                type
//	[uint32             request id]   -- every type except INIT/VERSION
//	byte[...]           body
type frame struct {
	Type  byte
	ReqID uint32
	Body  []byte
}

// readFrame reads exactly one frame from r. INIT and VERSION carry no
// request id on the wire; a synthetic id of 0 is used for them.
func readFrame(r io.Reader) (*frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, wrapReadErr(err)
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])
	if payloadLen < 1 {
		return nil, &UnexpectedEOFError{}
	}

	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return nil, wrapReadErr(err)
	}
	typ := typeBuf[0]

	remaining := payloadLen - 1
	fr := &frame{Type: typ}

	if typ != SSH_FXP_VERSION && typ != SSH_FXP_INIT {
		if remaining < 4 {
			return nil, &UnexpectedEOFError{}
		}
		var idBuf [4]byte
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return nil, wrapReadErr(err)
		}
		fr.ReqID = binary.BigEndian.Uint32(idBuf[:])
		remaining -= 4
	}

	fr.Body = make([]byte, remaining)
	if remaining > 0 {
		if _, err := io.ReadFull(r, fr.Body); err != nil {
			return nil, wrapReadErr(err)
		}
	}
	return fr, nil
}

func wrapReadErr(err error) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return &UnexpectedEOFError{Err: err}
	}
	return err
}

// writeFrame writes one frame to w. Callers are responsible for holding
// whatever lock serializes writers; writeFrame itself performs a single
// buffered write per frame so bytes of distinct frames are never
// interleaved as long as that discipline is respected.
func writeFrame(w io.Writer, typ byte, reqID uint32, hasReqID bool, body []byte) error {
	headerLen := 1
	if hasReqID {
		headerLen += 4
	}
	payloadLen := uint32(headerLen + len(body))

	buf := make([]byte, 4+headerLen, 4+headerLen+len(body))
	binary.BigEndian.PutUint32(buf[0:4], payloadLen)
	buf[4] = typ
	if hasReqID {
		binary.BigEndian.PutUint32(buf[5:9], reqID)
	}
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

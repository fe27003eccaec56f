package usftp

import (
	"io"
	"runtime"
)

// ReadDir is a user-facing iterator over directory entries. It owns a
// directory Handle plus a buffer of Name entries that is lazily refilled
// by successive SSH_FXP_READDIR requests until the server reports EOF.
// Entries named "." and ".." are returned like any other -- filtering
// them is the caller's decision, not this type's.
type ReadDir struct {
	c      *Client
	handle string
	buf    []Name
	eof    bool
	closed bool
}

func newReadDir(c *Client, handle string) *ReadDir {
	d := &ReadDir{c: c, handle: handle}
	runtime.SetFinalizer(d, finalizeReadDir)
	return d
}

func finalizeReadDir(d *ReadDir) { _ = d.Close() }

// Next returns the next directory entry, issuing a SSH_FXP_READDIR
// request to refill its buffer when empty. It returns io.EOF once the
// server has reported the end of the listing.
func (d *ReadDir) Next() (Name, error) {
	for len(d.buf) == 0 {
		if d.eof {
			return Name{}, io.EOF
		}
		packet, err := d.c.sendReceive(SSH_FXP_READDIR, encodeHandleRequest(d.handle))
		if err != nil {
			return Name{}, err
		}
		switch v := packet.(type) {
		case nameResponse:
			d.buf = v.Names
		case statusResponse:
			if v.Status.Code == StatusEOF {
				d.eof = true
				continue
			}
			return Name{}, &ServerError{Status: v.Status}
		default:
			return Name{}, &UnexpectedResponseError{Packet: packet}
		}
	}
	n := d.buf[0]
	d.buf = d.buf[1:]
	return n, nil
}

// Close closes the remote directory handle via SSH_FXP_CLOSE. It is safe
// to call more than once; only the first call does any work.
func (d *ReadDir) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	runtime.SetFinalizer(d, nil)
	return expectStatusOK(d.c.sendReceive(SSH_FXP_CLOSE, encodeHandleRequest(d.handle)))
}

package usftp

import (
	"errors"
	"io"
	"runtime"
)

// File is a user-facing handle to an open remote file. Reads and writes
// advance an internal cursor; Seek repositions it without touching the
// server. Its lifetime runs from a successful Client.Open through an
// explicit Close; if the caller never calls Close, a best-effort CLOSE is
// still attempted once the File is garbage collected (Go has no
// deterministic destructors, so this is the closest analogue to a
// close-on-drop and is not a substitute for calling Close explicitly --
// the handle leaks server-side until either happens or the stream ends).
type File struct {
	c      *Client
	handle string
	offset uint64
	closed bool
}

func newFile(c *Client, handle string) *File {
	f := &File{c: c, handle: handle}
	runtime.SetFinalizer(f, finalizeFile)
	return f
}

func finalizeFile(f *File) { _ = f.Close() }

// Read implements io.Reader. A server reply of STATUS{EOF} yields (0,
// io.EOF) without advancing the cursor; any other non-OK status is
// mapped through ServerError, which satisfies errors.Is against
// io/fs.ErrNotExist / io/fs.ErrPermission for the common cases.
func (f *File) Read(p []byte) (int, error) {
	packet, err := f.c.sendReceive(SSH_FXP_READ, encodeReadRequest(f.handle, f.offset, uint32(len(p))))
	if err != nil {
		return 0, err
	}
	switch v := packet.(type) {
	case dataResponse:
		n := copy(p, v.Data)
		f.offset += uint64(n)
		return n, nil
	case statusResponse:
		if v.Status.Code == StatusEOF {
			return 0, io.EOF
		}
		return 0, &ServerError{Status: v.Status}
	default:
		return 0, &UnexpectedResponseError{Packet: packet}
	}
}

// Write implements io.Writer, issuing SSH_FXP_WRITE at the current cursor
// and advancing it by the number of bytes accepted.
func (f *File) Write(p []byte) (int, error) {
	packet, err := f.c.sendReceive(SSH_FXP_WRITE, encodeWriteRequest(f.handle, f.offset, p))
	if err != nil {
		return 0, err
	}
	switch v := packet.(type) {
	case statusResponse:
		if v.Status.Code != StatusOK {
			return 0, &ServerError{Status: v.Status}
		}
		f.offset += uint64(len(p))
		return len(p), nil
	default:
		return 0, &UnexpectedResponseError{Packet: packet}
	}
}

// Stat fetches the current attributes of the open file via SSH_FXP_FSTAT.
// Like Client.Stat/Lstat it never returns an UnexpectedResponseError for
// a well-formed STATUS reply: a STATUS reply is always a ServerError.
func (f *File) Stat() (FileAttr, error) {
	return expectAttrs(f.c.sendReceive(SSH_FXP_FSTAT, encodeHandleRequest(f.handle)))
}

// Setstat applies attrs to the open file via SSH_FXP_FSETSTAT.
func (f *File) Setstat(attrs FileAttr) error {
	return expectStatusOK(f.c.sendReceive(SSH_FXP_FSETSTAT, encodeHandleAttrsRequest(f.handle, attrs)))
}

var errNegativeSeek = errors.New("usftp: resulting offset would be negative")
var errSizeUnavailable = errors.New("usftp: server did not report a file size")

// Seek implements io.Seeker. SeekEnd requires the server to report a size
// in its FSTAT reply; if it doesn't, Seek fails rather than guessing.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = int64(f.offset) + offset
	case io.SeekEnd:
		attrs, err := f.Stat()
		if err != nil {
			return int64(f.offset), err
		}
		if attrs.Size == nil {
			return int64(f.offset), errSizeUnavailable
		}
		newOffset = int64(*attrs.Size) + offset
	default:
		return int64(f.offset), errors.New("usftp: invalid whence")
	}
	if newOffset < 0 {
		return int64(f.offset), errNegativeSeek
	}
	f.offset = uint64(newOffset)
	return newOffset, nil
}

// Close closes the remote handle via SSH_FXP_CLOSE. It is safe to call
// more than once; only the first call does any work.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	runtime.SetFinalizer(f, nil)
	return expectStatusOK(f.c.sendReceive(SSH_FXP_CLOSE, encodeHandleRequest(f.handle)))
}

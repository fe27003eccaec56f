package usftp

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

// decoder consumes a single message body left-to-right. It never panics on
// short input; every accessor returns an error instead so a truncated frame
// surfaces as UnexpectedEOFError rather than a crash.
type decoder struct {
	b []byte
}

func newDecoder(b []byte) *decoder { return &decoder{b: b} }

func (d *decoder) u8() (uint8, error) {
	if len(d.b) < 1 {
		return 0, &UnexpectedEOFError{}
	}
	v := d.b[0]
	d.b = d.b[1:]
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if len(d.b) < 4 {
		return 0, &UnexpectedEOFError{}
	}
	v := binary.BigEndian.Uint32(d.b)
	d.b = d.b[4:]
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if len(d.b) < 8 {
		return 0, &UnexpectedEOFError{}
	}
	v := binary.BigEndian.Uint64(d.b)
	d.b = d.b[8:]
	return v, nil
}

// bytesN consumes a u32 length prefix followed by that many raw bytes.
func (d *decoder) bytesN() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if uint32(len(d.b)) < n {
		return nil, &UnexpectedEOFError{}
	}
	v := d.b[:n]
	d.b = d.b[n:]
	return v, nil
}

func (d *decoder) str() (string, error) {
	v, err := d.bytesN()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// utf8str is like str but validates the result is well-formed UTF-8, used
// only for SSH_FXP_STATUS error messages per the wire spec.
func (d *decoder) utf8str() (string, error) {
	s, err := d.str()
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(s) {
		return "", &Utf8Error{Err: errInvalidUTF8}
	}
	return s, nil
}

// done reports whether every byte of the body has been consumed. The
// router calls this after decoding to detect a declared length that
// exceeds what the decoder actually consumed.
func (d *decoder) done() bool { return len(d.b) == 0 }

// encoder accumulates a message body in wire order.
type encoder struct {
	buf bytes.Buffer
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) putU8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) putU32(v uint32) { _ = binary.Write(&e.buf, binary.BigEndian, v) }
func (e *encoder) putU64(v uint64) { _ = binary.Write(&e.buf, binary.BigEndian, v) }

func (e *encoder) putBytes(b []byte) {
	e.putU32(uint32(len(b)))
	e.buf.Write(b)
}

func (e *encoder) putString(s string) { e.putBytes([]byte(s)) }

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

// Extension is an SFTP extension name/value pair, as carried in the
// extension list of INIT/VERSION and in the tail of a FileAttr.
type Extension struct {
	Name string
	Data string
}

// FileAttr is the SFTP v3 attribute block. Every field is optional; a nil
// pointer means the field is absent on the wire. Size is present iff
// non-nil; UID is present iff GID is (and vice versa); ATime is present
// iff MTime is. NewFileAttr returns the all-absent value (the zero value
// already satisfies this, NewFileAttr exists for API parity with callers
// that prefer a constructor).
type FileAttr struct {
	Size        *uint64
	UID         *uint32
	GID         *uint32
	Permissions *FileMode
	ATime       *uint32
	MTime       *uint32
	Extensions  []Extension
}

// NewFileAttr returns a FileAttr with every field absent.
func NewFileAttr() FileAttr { return FileAttr{} }

func (a FileAttr) flags() uint32 {
	var flags uint32
	if a.Size != nil {
		flags |= SSH_FILEXFER_ATTR_SIZE
	}
	if a.UID != nil && a.GID != nil {
		flags |= SSH_FILEXFER_ATTR_UIDGID
	}
	if a.Permissions != nil {
		flags |= SSH_FILEXFER_ATTR_PERMISSIONS
	}
	if a.ATime != nil && a.MTime != nil {
		flags |= SSH_FILEXFER_ATTR_ACMODTIME
	}
	if len(a.Extensions) > 0 {
		flags |= SSH_FILEXFER_ATTR_EXTENDED
	}
	return flags
}

func (a FileAttr) encode(e *encoder) {
	// NB: the flag mask is composed with OR. An earlier revision of the
	// reference implementation this was ported from used AND here, which
	// collapses every combination of present fields down to single bits;
	// that was a bug, not an alternate encoding.
	e.putU32(a.flags())
	if a.Size != nil {
		e.putU64(*a.Size)
	}
	if a.UID != nil && a.GID != nil {
		e.putU32(*a.UID)
		e.putU32(*a.GID)
	}
	if a.Permissions != nil {
		e.putU32(uint32(*a.Permissions))
	}
	if a.ATime != nil && a.MTime != nil {
		e.putU32(*a.ATime)
		e.putU32(*a.MTime)
	}
	if len(a.Extensions) > 0 {
		e.putU32(uint32(len(a.Extensions)))
		for _, ext := range a.Extensions {
			e.putString(ext.Name)
			e.putString(ext.Data)
		}
	}
}

func decodeFileAttr(d *decoder) (FileAttr, error) {
	var a FileAttr
	flags, err := d.u32()
	if err != nil {
		return a, err
	}
	if flags&SSH_FILEXFER_ATTR_SIZE != 0 {
		v, err := d.u64()
		if err != nil {
			return a, err
		}
		a.Size = &v
	}
	if flags&SSH_FILEXFER_ATTR_UIDGID != 0 {
		uid, err := d.u32()
		if err != nil {
			return a, err
		}
		gid, err := d.u32()
		if err != nil {
			return a, err
		}
		a.UID, a.GID = &uid, &gid
	}
	if flags&SSH_FILEXFER_ATTR_PERMISSIONS != 0 {
		v, err := d.u32()
		if err != nil {
			return a, err
		}
		m := FileMode(v)
		a.Permissions = &m
	}
	if flags&SSH_FILEXFER_ATTR_ACMODTIME != 0 {
		at, err := d.u32()
		if err != nil {
			return a, err
		}
		mt, err := d.u32()
		if err != nil {
			return a, err
		}
		a.ATime, a.MTime = &at, &mt
	}
	if flags&SSH_FILEXFER_ATTR_EXTENDED != 0 {
		count, err := d.u32()
		if err != nil {
			return a, err
		}
		a.Extensions = make([]Extension, 0, count)
		for i := uint32(0); i < count; i++ {
			name, err := d.str()
			if err != nil {
				return a, err
			}
			data, err := d.str()
			if err != nil {
				return a, err
			}
			a.Extensions = append(a.Extensions, Extension{Name: name, Data: data})
		}
	}
	return a, nil
}

// Name is one entry of an SSH_FXP_NAME response, as returned by REALPATH,
// READLINK, and READDIR.
type Name struct {
	Filename string
	Longname string
	Attrs    FileAttr
}

func decodeNameList(d *decoder) ([]Name, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	names := make([]Name, 0, count)
	for i := uint32(0); i < count; i++ {
		filename, err := d.str()
		if err != nil {
			return nil, err
		}
		longname, err := d.str()
		if err != nil {
			return nil, err
		}
		attrs, err := decodeFileAttr(d)
		if err != nil {
			return nil, err
		}
		names = append(names, Name{Filename: filename, Longname: longname, Attrs: attrs})
	}
	return names, nil
}

var errInvalidUTF8 = errInvalidUTF8Sentinel{}

type errInvalidUTF8Sentinel struct{}

func (errInvalidUTF8Sentinel) Error() string { return "invalid UTF-8 in status message" }

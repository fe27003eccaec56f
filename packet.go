package usftp

// Message type bytes, as assigned by the SFTP v3 draft. SYMLINK (20) is
// deliberately absent: servers disagree on the argument order and the
// reference implementations that exist (OpenSSH vs. others) are not
// consistent enough to offer a single client-side signature for it.
const (
	SSH_FXP_INIT     = 1
	SSH_FXP_VERSION  = 2
	SSH_FXP_OPEN     = 3
	SSH_FXP_CLOSE    = 4
	SSH_FXP_READ     = 5
	SSH_FXP_WRITE    = 6
	SSH_FXP_LSTAT    = 7
	SSH_FXP_FSTAT    = 8
	SSH_FXP_SETSTAT  = 9
	SSH_FXP_FSETSTAT = 10
	SSH_FXP_OPENDIR  = 11
	SSH_FXP_READDIR  = 12
	SSH_FXP_REMOVE   = 13
	SSH_FXP_MKDIR    = 14
	SSH_FXP_RMDIR    = 15
	SSH_FXP_REALPATH = 16
	SSH_FXP_STAT     = 17
	SSH_FXP_RENAME   = 18
	SSH_FXP_READLINK = 19

	SSH_FXP_STATUS = 101
	SSH_FXP_HANDLE = 102
	SSH_FXP_DATA   = 103
	SSH_FXP_NAME   = 104
	SSH_FXP_ATTRS  = 105
)

// Attribute flag bits (FileAttr.flags()).
const (
	SSH_FILEXFER_ATTR_SIZE        = 0x00000001
	SSH_FILEXFER_ATTR_UIDGID      = 0x00000002
	SSH_FILEXFER_ATTR_PERMISSIONS = 0x00000004
	SSH_FILEXFER_ATTR_ACMODTIME   = 0x00000008
	SSH_FILEXFER_ATTR_EXTENDED    = 0x80000000
)

// Open flag bits (pflags), composed by OpenOptions.
const (
	SSH_FXF_READ   = 0x00000001
	SSH_FXF_WRITE  = 0x00000002
	SSH_FXF_APPEND = 0x00000004
	SSH_FXF_CREAT  = 0x00000008
	SSH_FXF_TRUNC  = 0x00000010
	SSH_FXF_EXCL   = 0x00000020
)

// Status codes carried in SSH_FXP_STATUS.
const (
	SSH_FX_OK                = 0
	SSH_FX_EOF               = 1
	SSH_FX_NO_SUCH_FILE      = 2
	SSH_FX_PERMISSION_DENIED = 3
	SSH_FX_FAILURE           = 4
	SSH_FX_BAD_MESSAGE       = 5
	SSH_FX_NO_CONNECTION     = 6
	SSH_FX_CONNECTION_LOST   = 7
	SSH_FX_OP_UNSUPPORTED    = 8
)

// StatusCode is the closed set of status codes a SSH_FXP_STATUS reply can
// carry, plus StatusUnknown for anything a server sends that predates or
// postdates this list.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusEOF
	StatusNoSuchFile
	StatusPermissionDenied
	StatusFailure
	StatusBadMessage
	StatusNoConnection
	StatusConnectionLost
	StatusOpUnsupported
	StatusUnknown
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusEOF:
		return "EOF"
	case StatusNoSuchFile:
		return "NO_SUCH_FILE"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	case StatusFailure:
		return "FAILURE"
	case StatusBadMessage:
		return "BAD_MESSAGE"
	case StatusNoConnection:
		return "NO_CONNECTION"
	case StatusConnectionLost:
		return "CONNECTION_LOST"
	case StatusOpUnsupported:
		return "OP_UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

func statusCodeFromWire(v uint32) StatusCode {
	switch v {
	case SSH_FX_OK:
		return StatusOK
	case SSH_FX_EOF:
		return StatusEOF
	case SSH_FX_NO_SUCH_FILE:
		return StatusNoSuchFile
	case SSH_FX_PERMISSION_DENIED:
		return StatusPermissionDenied
	case SSH_FX_FAILURE:
		return StatusFailure
	case SSH_FX_BAD_MESSAGE:
		return StatusBadMessage
	case SSH_FX_NO_CONNECTION:
		return StatusNoConnection
	case SSH_FX_CONNECTION_LOST:
		return StatusConnectionLost
	case SSH_FX_OP_UNSUPPORTED:
		return StatusOpUnsupported
	default:
		return StatusUnknown
	}
}

// Status is the decoded body of an SSH_FXP_STATUS response.
type Status struct {
	Code     StatusCode
	RawCode  uint32
	Message  string
	Language string
}

// response variants. The router decodes every SSH_FXP_* response into one
// of these, dispatching purely on the frame's type byte (no virtual
// dispatch, no inheritance hierarchy).
type (
	versionResponse struct {
		Version    uint32
		Extensions []Extension
	}
	statusResponse struct {
		Status Status
	}
	handleResponse struct {
		Handle string
	}
	dataResponse struct {
		Data []byte
	}
	nameResponse struct {
		Names []Name
	}
	attrsResponse struct {
		Attrs FileAttr
	}
	// unknownResponse preserves a frame whose type byte this client does
	// not recognize, byte for byte, rather than rejecting it -- future
	// server extensions can still be observed by a caller willing to
	// type-switch for it.
	unknownResponse struct {
		Type byte
		Raw  []byte
	}
)

func decodeExtensions(d *decoder) ([]Extension, error) {
	var exts []Extension
	for !d.done() {
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		data, err := d.str()
		if err != nil {
			return nil, err
		}
		exts = append(exts, Extension{Name: name, Data: data})
	}
	return exts, nil
}

// decodeResponseBody decodes the body of one response frame. It returns
// one of the response structs above, or unknownResponse for an
// unrecognized type byte (which is never an error).
func decodeResponseBody(typ byte, body []byte) (interface{}, error) {
	d := newDecoder(body)
	var (
		msg interface{}
		err error
	)
	switch typ {
	case SSH_FXP_VERSION:
		var v versionResponse
		if v.Version, err = d.u32(); err != nil {
			return nil, err
		}
		if v.Extensions, err = decodeExtensions(d); err != nil {
			return nil, err
		}
		return v, nil
	case SSH_FXP_STATUS:
		var v statusResponse
		var code uint32
		if code, err = d.u32(); err != nil {
			return nil, err
		}
		v.Status.RawCode = code
		v.Status.Code = statusCodeFromWire(code)
		if v.Status.Message, err = d.utf8str(); err != nil {
			return nil, err
		}
		if v.Status.Language, err = d.str(); err != nil {
			return nil, err
		}
		msg = v
	case SSH_FXP_HANDLE:
		var v handleResponse
		if v.Handle, err = d.str(); err != nil {
			return nil, err
		}
		msg = v
	case SSH_FXP_DATA:
		var v dataResponse
		if v.Data, err = d.bytesN(); err != nil {
			return nil, err
		}
		msg = v
	case SSH_FXP_NAME:
		var v nameResponse
		if v.Names, err = decodeNameList(d); err != nil {
			return nil, err
		}
		msg = v
	case SSH_FXP_ATTRS:
		var v attrsResponse
		if v.Attrs, err = decodeFileAttr(d); err != nil {
			return nil, err
		}
		msg = v
	default:
		// Unknown frames are preserved whole; there is nothing further
		// to consume, so skip the done() truncation check below.
		return unknownResponse{Type: typ, Raw: body}, nil
	}
	if !d.done() {
		return nil, &UnexpectedDataError{Type: typ}
	}
	return msg, nil
}

// --- request encoders. Each returns the body that follows the request id
// in the frame; framer.go is responsible for the length/type/id envelope. ---

func encodeInitBody(version uint32) []byte {
	e := newEncoder()
	e.putU32(version)
	return e.bytes()
}

func encodePathRequest(path string) []byte {
	e := newEncoder()
	e.putString(path)
	return e.bytes()
}

func encodeHandleRequest(handle string) []byte {
	e := newEncoder()
	e.putString(handle)
	return e.bytes()
}

func encodePathAttrsRequest(path string, attrs FileAttr) []byte {
	e := newEncoder()
	e.putString(path)
	attrs.encode(e)
	return e.bytes()
}

func encodeHandleAttrsRequest(handle string, attrs FileAttr) []byte {
	e := newEncoder()
	e.putString(handle)
	attrs.encode(e)
	return e.bytes()
}

func encodeOpenRequest(filename string, pflags uint32, attrs FileAttr) []byte {
	e := newEncoder()
	e.putString(filename)
	e.putU32(pflags)
	attrs.encode(e)
	return e.bytes()
}

func encodeReadRequest(handle string, offset uint64, length uint32) []byte {
	e := newEncoder()
	e.putString(handle)
	e.putU64(offset)
	e.putU32(length)
	return e.bytes()
}

func encodeWriteRequest(handle string, offset uint64, data []byte) []byte {
	e := newEncoder()
	e.putString(handle)
	e.putU64(offset)
	e.putBytes(data)
	return e.bytes()
}

func encodeRenameRequest(oldPath, newPath string) []byte {
	e := newEncoder()
	e.putString(oldPath)
	e.putString(newPath)
	return e.bytes()
}

package usftp

import (
	"fmt"
	"net"
	"sync"
)

// fakeServer is a minimal in-process SFTP v3 server used to exercise the
// client against real wire frames without needing an actual sftp-server
// subprocess. It understands just enough of the protocol to drive the
// scenarios in the spec's testable-properties section.
type fakeServer struct {
	conn net.Conn

	mu         sync.Mutex
	files      map[string]*fakeFile
	dirs       map[string][]string // dir path -> child basenames
	handles    map[string]*fakeHandle
	nextHandle int
}

type fakeFile struct {
	data      []byte
	mode      FileMode
	isSymlink bool
	target    string
}

type fakeHandle struct {
	path       string
	file       *fakeFile // nil for directory handles
	isDir      bool
	dirEntries []string
	dirServed  bool
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{
		conn:    conn,
		files:   make(map[string]*fakeFile),
		dirs:    make(map[string][]string),
		handles: make(map[string]*fakeHandle),
	}
}

func (s *fakeServer) putFile(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = &fakeFile{data: append([]byte(nil), data...), mode: ModeRegular | 0644}
}

func (s *fakeServer) putSymlink(path, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = &fakeFile{mode: ModeSymlink | 0777, isSymlink: true, target: target}
}

func (s *fakeServer) putDir(path string, children []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path] = children
}

// run serves requests until the connection errors out (typically because
// the client closed it). It is meant to be started with `go s.run()`.
func (s *fakeServer) run() {
	for {
		fr, err := readFrame(s.conn)
		if err != nil {
			return
		}
		if fr.Type == SSH_FXP_INIT {
			e := newEncoder()
			e.putU32(3)
			_ = writeFrame(s.conn, SSH_FXP_VERSION, 0, false, e.bytes())
			continue
		}
		s.dispatch(fr)
	}
}

func (s *fakeServer) dispatch(fr *frame) {
	d := newDecoder(fr.Body)
	switch fr.Type {
	case SSH_FXP_STAT:
		path, _ := d.str()
		s.replyAttrsForPath(fr.ReqID, path, true)
	case SSH_FXP_LSTAT:
		path, _ := d.str()
		s.replyAttrsForPath(fr.ReqID, path, false)
	case SSH_FXP_FSTAT:
		handle, _ := d.str()
		s.handleFstat(fr.ReqID, handle)
	case SSH_FXP_SETSTAT:
		_, _ = d.str()
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_FSETSTAT:
		_, _ = d.str()
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_OPEN:
		filename, _ := d.str()
		pflags, _ := d.u32()
		s.handleOpen(fr.ReqID, filename, pflags)
	case SSH_FXP_OPENDIR:
		path, _ := d.str()
		s.handleOpenDir(fr.ReqID, path)
	case SSH_FXP_READDIR:
		handle, _ := d.str()
		s.handleReadDir(fr.ReqID, handle)
	case SSH_FXP_READ:
		handle, _ := d.str()
		offset, _ := d.u64()
		length, _ := d.u32()
		s.handleRead(fr.ReqID, handle, offset, length)
	case SSH_FXP_WRITE:
		handle, _ := d.str()
		offset, _ := d.u64()
		data, _ := d.bytesN()
		s.handleWrite(fr.ReqID, handle, offset, data)
	case SSH_FXP_CLOSE:
		handle, _ := d.str()
		delete(s.handles, handle)
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_REMOVE:
		path, _ := d.str()
		s.mu.Lock()
		delete(s.files, path)
		s.mu.Unlock()
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_MKDIR:
		path, _ := d.str()
		s.putDir(path, nil)
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_RMDIR:
		path, _ := d.str()
		s.mu.Lock()
		delete(s.dirs, path)
		s.mu.Unlock()
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_RENAME:
		oldPath, _ := d.str()
		newPath, _ := d.str()
		s.mu.Lock()
		if f, ok := s.files[oldPath]; ok {
			s.files[newPath] = f
			delete(s.files, oldPath)
		}
		s.mu.Unlock()
		s.replyStatus(fr.ReqID, statusOK())
	case SSH_FXP_REALPATH:
		path, _ := d.str()
		s.replyName(fr.ReqID, path, path, FileAttr{})
	case SSH_FXP_READLINK:
		path, _ := d.str()
		s.handleReadlink(fr.ReqID, path)
	default:
		s.replyStatus(fr.ReqID, Status{Code: StatusOpUnsupported, RawCode: SSH_FX_OP_UNSUPPORTED, Message: "unsupported"})
	}
}

func statusOK() Status { return Status{Code: StatusOK, RawCode: SSH_FX_OK} }
func statusEOFVal() Status {
	return Status{Code: StatusEOF, RawCode: SSH_FX_EOF, Message: "EOF", Language: "en"}
}
func statusNoSuchFile() Status {
	return Status{Code: StatusNoSuchFile, RawCode: SSH_FX_NO_SUCH_FILE, Message: "no such file", Language: "en"}
}
func statusFailure(msg string) Status {
	return Status{Code: StatusFailure, RawCode: SSH_FX_FAILURE, Message: msg, Language: "en"}
}

func (s *fakeServer) replyStatus(id uint32, st Status) {
	e := newEncoder()
	e.putU32(st.RawCode)
	e.putString(st.Message)
	e.putString(st.Language)
	_ = writeFrame(s.conn, SSH_FXP_STATUS, id, true, e.bytes())
}

func (s *fakeServer) replyHandle(id uint32, handle string) {
	e := newEncoder()
	e.putString(handle)
	_ = writeFrame(s.conn, SSH_FXP_HANDLE, id, true, e.bytes())
}

func (s *fakeServer) replyData(id uint32, data []byte) {
	e := newEncoder()
	e.putBytes(data)
	_ = writeFrame(s.conn, SSH_FXP_DATA, id, true, e.bytes())
}

func (s *fakeServer) replyAttrs(id uint32, a FileAttr) {
	e := newEncoder()
	a.encode(e)
	_ = writeFrame(s.conn, SSH_FXP_ATTRS, id, true, e.bytes())
}

func (s *fakeServer) replyName(id uint32, filename, longname string, attrs FileAttr) {
	s.replyNameList(id, []Name{{Filename: filename, Longname: longname, Attrs: attrs}})
}

func (s *fakeServer) replyNameList(id uint32, names []Name) {
	e := newEncoder()
	e.putU32(uint32(len(names)))
	for _, n := range names {
		e.putString(n.Filename)
		e.putString(n.Longname)
		n.Attrs.encode(e)
	}
	_ = writeFrame(s.conn, SSH_FXP_NAME, id, true, e.bytes())
}

func attrsFor(f *fakeFile) FileAttr {
	var size uint64
	if f.isSymlink {
		size = uint64(len(f.target))
	} else {
		size = uint64(len(f.data))
	}
	mode := f.mode
	return FileAttr{Size: &size, Permissions: &mode}
}

func (s *fakeServer) replyAttrsForPath(id uint32, path string, followSymlink bool) {
	s.mu.Lock()
	f, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		if _, isDir := s.dirs[path]; isDir {
			sz := uint64(0)
			mode := ModeDir | 0755
			s.replyAttrs(id, FileAttr{Size: &sz, Permissions: &mode})
			return
		}
		s.replyStatus(id, statusNoSuchFile())
		return
	}
	if f.isSymlink && followSymlink {
		s.mu.Lock()
		target, ok := s.files[f.target]
		s.mu.Unlock()
		if !ok {
			s.replyStatus(id, statusNoSuchFile())
			return
		}
		s.replyAttrs(id, attrsFor(target))
		return
	}
	s.replyAttrs(id, attrsFor(f))
}

func (s *fakeServer) handleOpen(id uint32, filename string, pflags uint32) {
	s.mu.Lock()
	f, ok := s.files[filename]
	if !ok {
		if pflags&SSH_FXF_CREAT == 0 {
			s.mu.Unlock()
			s.replyStatus(id, statusNoSuchFile())
			return
		}
		f = &fakeFile{mode: ModeRegular | 0644}
		s.files[filename] = f
	}
	if pflags&SSH_FXF_TRUNC != 0 {
		f.data = nil
	}
	handle := fmt.Sprintf("handle-%d", s.nextHandle)
	s.nextHandle++
	s.handles[handle] = &fakeHandle{path: filename, file: f}
	s.mu.Unlock()
	s.replyHandle(id, handle)
}

func (s *fakeServer) handleOpenDir(id uint32, path string) {
	s.mu.Lock()
	children, ok := s.dirs[path]
	if !ok {
		s.mu.Unlock()
		s.replyStatus(id, statusNoSuchFile())
		return
	}
	handle := fmt.Sprintf("handle-%d", s.nextHandle)
	s.nextHandle++
	entries := append([]string{".", ".."}, children...)
	s.handles[handle] = &fakeHandle{path: path, isDir: true, dirEntries: entries}
	s.mu.Unlock()
	s.replyHandle(id, handle)
}

func (s *fakeServer) handleReadDir(id uint32, handle string) {
	s.mu.Lock()
	h, ok := s.handles[handle]
	if !ok || !h.isDir {
		s.mu.Unlock()
		s.replyStatus(id, statusFailure("bad handle"))
		return
	}
	if h.dirServed {
		s.mu.Unlock()
		s.replyStatus(id, statusEOFVal())
		return
	}
	h.dirServed = true
	entries := h.dirEntries
	s.mu.Unlock()

	names := make([]Name, 0, len(entries))
	for _, nm := range entries {
		var attrs FileAttr
		if nm == "." || nm == ".." {
			sz := uint64(0)
			mode := ModeDir | 0755
			attrs = FileAttr{Size: &sz, Permissions: &mode}
		} else {
			s.mu.Lock()
			f := s.files[h.path+"/"+nm]
			s.mu.Unlock()
			if f != nil {
				attrs = attrsFor(f)
			}
		}
		names = append(names, Name{Filename: nm, Longname: nm, Attrs: attrs})
	}
	s.replyNameList(id, names)
}

func (s *fakeServer) handleRead(id uint32, handle string, offset uint64, length uint32) {
	s.mu.Lock()
	h, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok || h.file == nil {
		s.replyStatus(id, statusFailure("bad handle"))
		return
	}
	data := h.file.data
	if offset >= uint64(len(data)) {
		s.replyStatus(id, statusEOFVal())
		return
	}
	end := offset + uint64(length)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	s.replyData(id, data[offset:end])
}

func (s *fakeServer) handleWrite(id uint32, handle string, offset uint64, data []byte) {
	s.mu.Lock()
	h, ok := s.handles[handle]
	if !ok || h.file == nil {
		s.mu.Unlock()
		s.replyStatus(id, statusFailure("bad handle"))
		return
	}
	need := offset + uint64(len(data))
	if uint64(len(h.file.data)) < need {
		grown := make([]byte, need)
		copy(grown, h.file.data)
		h.file.data = grown
	}
	copy(h.file.data[offset:], data)
	s.mu.Unlock()
	s.replyStatus(id, statusOK())
}

func (s *fakeServer) handleFstat(id uint32, handle string) {
	s.mu.Lock()
	h, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok {
		s.replyStatus(id, statusFailure("bad handle"))
		return
	}
	if h.isDir {
		sz := uint64(0)
		mode := ModeDir | 0755
		s.replyAttrs(id, FileAttr{Size: &sz, Permissions: &mode})
		return
	}
	s.replyAttrs(id, attrsFor(h.file))
}

func (s *fakeServer) handleReadlink(id uint32, path string) {
	s.mu.Lock()
	f, ok := s.files[path]
	s.mu.Unlock()
	if !ok || !f.isSymlink {
		s.replyStatus(id, statusFailure("not a symlink"))
		return
	}
	s.replyName(id, f.target, f.target, FileAttr{})
}

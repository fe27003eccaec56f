package usftp

import (
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Client is a client-side SFTP v3 session multiplexed over a single
// bidirectional stream pair. Any number of goroutines may call its
// methods concurrently; each call blocks only the calling goroutine until
// its matching response arrives or the session fails.
//
// A Client moves through three states: Handshaking (inside NewClient,
// single-threaded), Ready (the router goroutine is running and any
// number of requests may be in flight), and Failed (the router has
// exited; every call, in flight or new, observes the same terminal
// error). Failed is absorbing: once reached, a Client instance never
// recovers.
type Client struct {
	r io.Reader
	w io.WriteCloser

	seq   uint32 // accessed only via atomic ops, see nextRequestID
	state *receiverState

	writeMu sync.Mutex
	group   *errgroup.Group
}

// NewClient performs the SFTP v3 handshake over r/w and, on success,
// starts the background router and returns a Ready client. r and w are
// typically the stdout/stdin pipes of an SSH session running the
// server's sftp subsystem (see Dial), but the core has no dependency on
// SSH itself: any reader/writer pair carrying the framed protocol works.
func NewClient(r io.Reader, w io.WriteCloser) (*Client, error) {
	c := &Client{
		r: r,
		w: w,
		state: &receiverState{
			pending: make(map[uint32]chan response),
		},
	}
	if err := c.doHandshake(); err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.Go(c.routerLoop)
	c.group = &g

	return c, nil
}

// Close closes the underlying write stream. This induces a read error in
// the router (if the stream is fully duplex over the same connection),
// which unblocks every in-flight call with a ReceiverDisconnectedError.
// Close does not itself wait for in-flight calls to finish; use Wait for
// that.
func (c *Client) Close() error {
	return c.w.Close()
}

// Wait blocks until the router has exited and returns the error that
// caused it to do so. It may be called concurrently from multiple
// goroutines.
func (c *Client) Wait() error {
	return c.group.Wait()
}

func expectStatusOK(packet interface{}, err error) error {
	if err != nil {
		return err
	}
	switch v := packet.(type) {
	case statusResponse:
		if v.Status.Code == StatusOK {
			return nil
		}
		return &ServerError{Status: v.Status}
	default:
		return &UnexpectedResponseError{Packet: packet}
	}
}

func expectAttrs(packet interface{}, err error) (FileAttr, error) {
	if err != nil {
		return FileAttr{}, err
	}
	switch v := packet.(type) {
	case attrsResponse:
		return v.Attrs, nil
	case statusResponse:
		return FileAttr{}, &ServerError{Status: v.Status}
	default:
		return FileAttr{}, &UnexpectedResponseError{Packet: packet}
	}
}

func expectHandle(packet interface{}, err error) (string, error) {
	if err != nil {
		return "", err
	}
	switch v := packet.(type) {
	case handleResponse:
		return v.Handle, nil
	case statusResponse:
		return "", &ServerError{Status: v.Status}
	default:
		return "", &UnexpectedResponseError{Packet: packet}
	}
}

func expectLastName(packet interface{}, err error) (Name, error) {
	if err != nil {
		return Name{}, err
	}
	switch v := packet.(type) {
	case nameResponse:
		if len(v.Names) == 0 {
			return Name{}, &UnexpectedResponseError{Packet: packet}
		}
		return v.Names[len(v.Names)-1], nil
	case statusResponse:
		return Name{}, &ServerError{Status: v.Status}
	default:
		return Name{}, &UnexpectedResponseError{Packet: packet}
	}
}

// Stat follows symlinks (SSH_FXP_STAT).
func (c *Client) Stat(path string) (FileAttr, error) {
	return expectAttrs(c.sendReceive(SSH_FXP_STAT, encodePathRequest(path)))
}

// Lstat does not follow symlinks (SSH_FXP_LSTAT); on a symlink it
// describes the link itself, not its target.
func (c *Client) Lstat(path string) (FileAttr, error) {
	return expectAttrs(c.sendReceive(SSH_FXP_LSTAT, encodePathRequest(path)))
}

// Setstat applies attrs to path (SSH_FXP_SETSTAT). Fields left absent in
// attrs are left untouched server-side.
func (c *Client) Setstat(path string, attrs FileAttr) error {
	return expectStatusOK(c.sendReceive(SSH_FXP_SETSTAT, encodePathAttrsRequest(path, attrs)))
}

// Mkdir creates path as a directory (SSH_FXP_MKDIR).
func (c *Client) Mkdir(path string) error {
	return expectStatusOK(c.sendReceive(SSH_FXP_MKDIR, encodePathAttrsRequest(path, FileAttr{})))
}

// Rmdir removes the empty directory at path (SSH_FXP_RMDIR).
func (c *Client) Rmdir(path string) error {
	return expectStatusOK(c.sendReceive(SSH_FXP_RMDIR, encodePathRequest(path)))
}

// Remove removes the file at path (SSH_FXP_REMOVE).
func (c *Client) Remove(path string) error {
	return expectStatusOK(c.sendReceive(SSH_FXP_REMOVE, encodePathRequest(path)))
}

// Rename renames oldPath to newPath (SSH_FXP_RENAME).
func (c *Client) Rename(oldPath, newPath string) error {
	return expectStatusOK(c.sendReceive(SSH_FXP_RENAME, encodeRenameRequest(oldPath, newPath)))
}

// Realpath resolves path to its canonical, absolute form (SSH_FXP_REALPATH).
func (c *Client) Realpath(path string) (string, error) {
	name, err := expectLastName(c.sendReceive(SSH_FXP_REALPATH, encodePathRequest(path)))
	if err != nil {
		return "", err
	}
	return name.Filename, nil
}

// Readlink reads the target of the symlink at path (SSH_FXP_READLINK).
func (c *Client) Readlink(path string) (string, error) {
	name, err := expectLastName(c.sendReceive(SSH_FXP_READLINK, encodePathRequest(path)))
	if err != nil {
		return "", err
	}
	return name.Filename, nil
}

// Open opens path with the given flags (SSH_FXP_OPEN) and returns a File
// positioned at offset 0.
func (c *Client) Open(path string, flags OpenFlags) (*File, error) {
	handle, err := expectHandle(c.sendReceive(SSH_FXP_OPEN, encodeOpenRequest(path, uint32(flags), FileAttr{})))
	if err != nil {
		return nil, err
	}
	return newFile(c, handle), nil
}

// ReadDir opens path as a directory (SSH_FXP_OPENDIR) and returns a
// ReadDir that lazily fetches entries as Next is called.
func (c *Client) ReadDir(path string) (*ReadDir, error) {
	handle, err := expectHandle(c.sendReceive(SSH_FXP_OPENDIR, encodePathRequest(path)))
	if err != nil {
		return nil, err
	}
	return newReadDir(c, handle), nil
}

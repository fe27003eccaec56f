package usftp

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
)

// Dial is the external-collaborator half of this package: it establishes
// an SSH connection, starts the server's "sftp" subsystem, and wires the
// resulting stdin/stdout pipes into NewClient. The protocol core itself
// has no dependency on SSH -- it consumes an arbitrary reader/writer pair
// -- but obtaining that pair this way is how nearly every caller will
// actually use this package, so it's worth shipping.
//
// Host key verification is intentionally left to the caller: passing
// ssh.InsecureIgnoreHostKey() here would make this package silently
// unsafe by default, so Dial takes a HostKeyCallback instead of picking
// one for you.
func Dial(user, host string, port int, privateKeyPath string, hostKeyCallback ssh.HostKeyCallback) (*Client, error) {
	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("usftp: reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("usftp: parsing private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("usftp: dialing %s: %w", addr, err)
	}

	client, err := NewClientOnConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

// NewClientOnConn starts the "sftp" subsystem on a session of an already
// established SSH connection and returns a Client multiplexed over it.
// Closing the returned Client does not close conn; callers that opened
// conn themselves are responsible for closing it too.
func NewClientOnConn(conn *ssh.Client) (*Client, error) {
	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("usftp: opening session: %w", err)
	}
	if err := session.RequestSubsystem("sftp"); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("usftp: requesting sftp subsystem: %w", err)
	}
	w, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	r, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	client, err := NewClient(r, sessionWriteCloser{stdin: w, session: session})
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return client, nil
}

// sessionWriteCloser closes the owning ssh.Session when the stdin pipe is
// closed, since *ssh.Session's stdin pipe alone does not tear down the
// subsystem.
type sessionWriteCloser struct {
	stdin   io.WriteCloser
	session *ssh.Session
}

func (s sessionWriteCloser) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s sessionWriteCloser) Close() error {
	werr := s.stdin.Close()
	serr := s.session.Close()
	if werr != nil {
		return werr
	}
	return serr
}

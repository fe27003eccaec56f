package usftp

import "sync"

// receiverState is the pending table plus the sticky terminal error. It is
// the only mutable state shared between the dispatcher (many caller
// goroutines) and the router (the single background goroutine that owns
// the read side).
type receiverState struct {
	mu      sync.Mutex
	pending map[uint32]chan response
	recvErr *ReceiverDisconnectedError
}

// routerLoop is the single background worker that owns exclusive read
// access to the stream. It runs until the stream errors out or a
// response arrives for a request id nobody is waiting on, at which point
// it broadcasts a terminal error to every outstanding waiter and returns.
func (c *Client) routerLoop() error {
	for {
		fr, err := readFrame(c.r)
		if err != nil {
			c.broadcastTerminalError(err)
			return err
		}

		packet, err := decodeResponseBody(fr.Type, fr.Body)
		if err != nil {
			c.broadcastTerminalError(err)
			return err
		}

		c.state.mu.Lock()
		ch, ok := c.state.pending[fr.ReqID]
		if ok {
			delete(c.state.pending, fr.ReqID)
		}
		c.state.mu.Unlock()

		if !ok {
			err := &NoMatchingRequestError{ID: fr.ReqID}
			c.broadcastTerminalError(err)
			return err
		}

		ch <- response{packet: packet}
	}
}

// broadcastTerminalError disables the client for the rest of its
// lifetime: every waiter still in the pending table receives the same
// shared ReceiverDisconnectedError, the table is cleared, and recvErr is
// set so every subsequent dispatcher call fails fast without touching the
// stream.
func (c *Client) broadcastTerminalError(cause error) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if c.state.recvErr != nil {
		// Already terminal; broadcastTerminalError is only ever called
		// from routerLoop, which only runs once, so this guards against
		// nothing in practice but keeps recvErr sticky by construction.
		return
	}

	disconnected := &ReceiverDisconnectedError{Cause: cause}
	for id, ch := range c.state.pending {
		ch <- response{err: disconnected}
		delete(c.state.pending, id)
	}
	c.state.recvErr = disconnected
}

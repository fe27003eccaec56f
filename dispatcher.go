package usftp

import "sync/atomic"

// response is what a waiter receives: either a decoded packet or a
// terminal error delivered by the router.
type response struct {
	packet interface{}
	err    error
}

// nextRequestID allocates a fresh request id. Distinctness, not ordering,
// is the property relied on, so a relaxed atomic add is sufficient; Go's
// atomic.AddUint32 silently wraps on overflow, which matches the spec's
// "wraparound is tolerated" stance -- colliding would require 2^32
// simultaneously live requests.
func (c *Client) nextRequestID() uint32 {
	return atomic.AddUint32(&c.seq, 1)
}

// sendReceive is the request dispatcher: it allocates a request id,
// registers a one-shot waiter, writes the frame, and blocks for the
// matching reply. Registration happens-before the write so a response can
// never be searched for in the pending table before its id has been
// inserted.
func (c *Client) sendReceive(msgType byte, body []byte) (interface{}, error) {
	id := c.nextRequestID()
	ch := make(chan response, 1)

	c.state.mu.Lock()
	if c.state.recvErr != nil {
		err := c.state.recvErr
		c.state.mu.Unlock()
		return nil, err
	}
	c.state.pending[id] = ch
	c.state.mu.Unlock()

	c.writeMu.Lock()
	err := writeFrame(c.w, msgType, id, true, body)
	c.writeMu.Unlock()

	if err != nil {
		c.state.mu.Lock()
		if cur, ok := c.state.pending[id]; ok && cur == ch {
			delete(c.state.pending, id)
		}
		c.state.mu.Unlock()
		return nil, err
	}

	res := <-ch
	return res.packet, res.err
}

// doHandshake performs the synchronous INIT/VERSION exchange required
// before the router goroutine is allowed to start. It is single-threaded
// by construction: nothing else is reading or writing the stream yet.
func (c *Client) doHandshake() error {
	if err := writeFrame(c.w, SSH_FXP_INIT, 0, false, encodeInitBody(3)); err != nil {
		return err
	}
	fr, err := readFrame(c.r)
	if err != nil {
		return err
	}
	if fr.Type != SSH_FXP_VERSION {
		body, decodeErr := decodeResponseBody(fr.Type, fr.Body)
		if decodeErr != nil {
			return decodeErr
		}
		return &UnexpectedResponseError{Packet: body}
	}
	body, err := decodeResponseBody(fr.Type, fr.Body)
	if err != nil {
		return err
	}
	v := body.(versionResponse)
	if v.Version != 3 {
		return &MismatchedVersionError{Version: v.Version}
	}
	return nil
}

package usftp

// OpenFlags is the pflags bitmask sent with SSH_FXP_OPEN.
type OpenFlags uint32

// OpenOptions builds an OpenFlags mask through chained calls, mirroring
// the read/write/append/create/truncate/exclude builder the Rust original
// this spec was distilled from exposed on its Client.
type OpenOptions struct {
	flags OpenFlags
}

// NewOpenOptions returns a builder with every flag unset.
func NewOpenOptions() *OpenOptions { return &OpenOptions{} }

func (o *OpenOptions) set(bit OpenFlags, enabled bool) *OpenOptions {
	if enabled {
		o.flags |= bit
	} else {
		o.flags &^= bit
	}
	return o
}

// Read toggles SSH_FXF_READ.
func (o *OpenOptions) Read(enabled bool) *OpenOptions { return o.set(SSH_FXF_READ, enabled) }

// Write toggles SSH_FXF_WRITE.
func (o *OpenOptions) Write(enabled bool) *OpenOptions { return o.set(SSH_FXF_WRITE, enabled) }

// Append toggles SSH_FXF_APPEND.
func (o *OpenOptions) Append(enabled bool) *OpenOptions { return o.set(SSH_FXF_APPEND, enabled) }

// Create toggles SSH_FXF_CREAT.
func (o *OpenOptions) Create(enabled bool) *OpenOptions { return o.set(SSH_FXF_CREAT, enabled) }

// Truncate toggles SSH_FXF_TRUNC.
func (o *OpenOptions) Truncate(enabled bool) *OpenOptions { return o.set(SSH_FXF_TRUNC, enabled) }

// Exclude toggles SSH_FXF_EXCL.
func (o *OpenOptions) Exclude(enabled bool) *OpenOptions { return o.set(SSH_FXF_EXCL, enabled) }

// Flags returns the composed mask, ready to pass to Client.Open.
func (o *OpenOptions) Flags() OpenFlags { return o.flags }

// Open composes o's flags and opens path on c.
func (o *OpenOptions) Open(c *Client, path string) (*File, error) {
	return c.Open(path, o.flags)
}

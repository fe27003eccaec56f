package usftp

// FileMode mirrors the permissions field of a FileAttr: a raw POSIX mode
// word as reported by the server. It is intentionally not compatible with
// the standard library's io/fs.FileMode -- the bit layout SFTP servers
// send over the wire is the POSIX st_mode word, not Go's portable
// encoding, and converting between the two silently would paper over
// that.
type FileMode uint32

const (
	ModeType    FileMode = 0xF000
	ModeSocket  FileMode = 0xC000
	ModeSymlink FileMode = 0xA000
	ModeRegular FileMode = 0x8000
	ModeBlock   FileMode = 0x6000
	ModeDir     FileMode = 0x4000
	ModeChar    FileMode = 0x2000
	ModeFIFO    FileMode = 0x1000
)

// String renders m the way `ls -l` would render its first ten columns.
func (m FileMode) String() string {
	b := make([]byte, 10)
	switch m & ModeType {
	case ModeDir:
		b[0] = 'd'
	case ModeSymlink:
		b[0] = 'l'
	case ModeSocket:
		b[0] = 's'
	case ModeBlock:
		b[0] = 'b'
	case ModeChar:
		b[0] = 'c'
	case ModeFIFO:
		b[0] = 'p'
	case ModeRegular:
		b[0] = '-'
	default:
		b[0] = '?'
	}

	const rwx = "rwxrwxrwx"
	for i, c := range rwx {
		if m&(1<<uint(9-1-i)) != 0 {
			b[i+1] = byte(c)
		} else {
			b[i+1] = '-'
		}
	}
	return string(b)
}

// IsDir reports whether m describes a directory.
func (m FileMode) IsDir() bool { return (m & ModeType) == ModeDir }

// IsRegular reports whether m describes a regular file.
func (m FileMode) IsRegular() bool { return (m & ModeType) == ModeRegular }

// IsSymlink reports whether m describes a symbolic link. Client.Stat
// follows links and Client.Lstat does not, so for a symlink path only the
// Lstat result reports true.
func (m FileMode) IsSymlink() bool { return (m & ModeType) == ModeSymlink }

// Perm returns the permission bits of m (the low 9 bits: owner/group/other
// read/write/execute), with the file-type bits masked off.
func (m FileMode) Perm() FileMode { return m & 0777 }

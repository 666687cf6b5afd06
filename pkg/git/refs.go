package git

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"
)

// RefUpdate is a single ref command from a receive-pack request.
type RefUpdate struct {
	OldSHA string
	NewSHA string
	Ref    string
}

// ZeroSHA is the all-zero object id used by ref commands to mark creation
// and deletion.
const ZeroSHA = "0000000000000000000000000000000000000000"

// IsCreate reports whether the update creates the ref.
func (u RefUpdate) IsCreate() bool {
	return u.OldSHA == ZeroSHA
}

// IsDelete reports whether the update deletes the ref.
func (u RefUpdate) IsDelete() bool {
	return u.NewSHA == ZeroSHA
}

// maxCommandCapture bounds how much of a receive-pack request is retained
// for ref command parsing. The command list precedes the pack data, so a
// small prefix is enough for any realistic push.
const maxCommandCapture = 1 << 20

// CommandCapture records the leading bytes of a receive-pack request as they
// stream through, so the ref command list can be parsed after the service
// completes without altering the byte stream. Use it as the tee target of an
// io.TeeReader wrapping the request body.
type CommandCapture struct {
	buf bytes.Buffer
}

// Write implements io.Writer. Bytes past the capture limit are discarded.
func (c *CommandCapture) Write(p []byte) (int, error) {
	n := len(p)
	if room := maxCommandCapture - c.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		c.buf.Write(p) // nolint: errcheck
	}

	return n, nil
}

// Updates parses the captured ref command list. It returns whatever commands
// precede the first flush-pkt; a request whose command list overflows the
// capture window yields an error.
func (c *CommandCapture) Updates() ([]RefUpdate, error) {
	return ParseReceivePackCommands(&c.buf)
}

// ParseReceivePackCommands reads the pkt-line ref command list from the start
// of a receive-pack request. Reading stops at the first flush-pkt; the pack
// data that follows is not consumed.
func ParseReceivePackCommands(r *bytes.Buffer) ([]RefUpdate, error) {
	var updates []RefUpdate
	s := pktline.NewScanner(r)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			// flush-pkt ends the command list
			return updates, nil
		}

		cmd := string(line)
		// The first command carries a NUL-separated capability list.
		if i := strings.IndexByte(cmd, 0); i >= 0 {
			cmd = cmd[:i]
		}
		cmd = strings.TrimSuffix(cmd, "\n")

		parts := strings.SplitN(cmd, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("git: malformed ref command %q", cmd)
		}

		updates = append(updates, RefUpdate{
			OldSHA: parts[0],
			NewSHA: parts[1],
			Ref:    parts[2],
		})
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("git: error scanning ref commands: %w", err)
	}

	return updates, nil
}

// Package loader reads the textual program-image format: lines beginning
// with '@' set the current load address (hex, no "0x" prefix); lines
// between address directives are whitespace-separated two-hex-digit byte
// tokens, each stored at the current address before it increments by one.
//
// Grounded on the teacher's emu/assemble.go line-scanning style (skip
// whitespace, pull a token, parse it, advance) rather than a regexp or a
// full tokenizer.
package loader

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rcornwell/rv32im/internal/memory"
)

// Load reads a program image from r and stores its bytes into mem. Malformed
// address directives and byte tokens are logged via log and skipped; Load
// never aborts partway through a well-formed file because of one bad line.
func Load(r io.Reader, mem *memory.Memory, log *slog.Logger) error {
	addr, have := uint32(0), false
	scanner := bufio.NewScanner(r)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@") {
			v, err := strconv.ParseUint(strings.TrimSpace(line[1:]), 16, 32)
			if err != nil {
				log.Warn("loader: malformed address directive, skipping", "line", lineNo, "text", line)
				continue
			}
			addr, have = uint32(v), true
			continue
		}

		if !have {
			// Bytes preceding the first '@' directive have nowhere to go.
			continue
		}

		for _, tok := range strings.Fields(line) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				log.Warn("loader: malformed byte token, skipping", "line", lineNo, "token", tok)
				continue
			}
			if !mem.Contains(addr, 1) {
				log.Warn("loader: address outside RAM window, skipping", "line", lineNo, "addr", addr)
				addr++
				continue
			}
			mem.WriteByte(addr, uint8(b))
			addr++
		}
	}

	return scanner.Err()
}

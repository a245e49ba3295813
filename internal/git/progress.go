package git

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// progressWriter reformats git's transfer progress, prefixing every line
type progressWriter struct {
	prefix string
	w      io.Writer
}

func newProgressWriter(prefix string, w io.Writer) *progressWriter {
	return &progressWriter{prefix: prefix, w: w}
}

var (
	// Receiving objects:  67% (35484/52960), 236.76 MiB | 78.92 MiB/s
	progressRegex = regexp.MustCompile(`(?:Receiving objects|Resolving deltas):\s*(\d+)%\s*\((\d+)/(\d+)\)(?:,\s*([\d.]+)\s*([^|]+)\|\s*([\d.]+)\s*([^,\n]+))?`)
	// Receiving objects: 100% (52960/52960), 298.63 MiB | 81.39 MiB/s, done.
	completionRegex = regexp.MustCompile(`(?:Receiving objects|Resolving deltas):\s*100%.*,\s*([\d.]+)\s*([^|]+).*done`)
	lineBreaks      = regexp.MustCompile(`[\r\n]+`)
)

func (pw *progressWriter) Write(p []byte) (int, error) {
	for _, line := range lineBreaks.Split(string(p), -1) {
		line = strings.TrimPrefix(strings.TrimSpace(line), "remote: ")
		if line == "" || strings.HasPrefix(line, "Cloning into") {
			continue
		}

		if m := completionRegex.FindStringSubmatch(line); m != nil {
			fmt.Fprintf(pw.w, "%s100%% (total size: %s %s)\n", pw.prefix, m[1], strings.TrimSpace(m[2]))
			continue
		}

		if m := progressRegex.FindStringSubmatch(line); m != nil {
			if m[4] != "" {
				fmt.Fprintf(pw.w, "%s%s%% (%s/%s) size: %s %s, speed: %s %s\n",
					pw.prefix, m[1], m[2], m[3], m[4], strings.TrimSpace(m[5]), m[6], strings.TrimSpace(m[7]))
			} else {
				fmt.Fprintf(pw.w, "%s%s%% (%s/%s)\n", pw.prefix, m[1], m[2], m[3])
			}
			continue
		}

		fmt.Fprintf(pw.w, "%s%s\n", pw.prefix, line)
	}
	return len(p), nil
}

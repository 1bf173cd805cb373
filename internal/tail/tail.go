package tail

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// How far back from the end of a log file the tail reader is willing to seek.
const maxTailBytes = 256 * 1024

var errorKeywords = []string{
	"error", "exception", "fatal", "panic", "traceback", "failed",
}

/**
 * Lines returns the last n lines of the file at path
 * @description
 * - Reads at most a fixed window from the end of the file, so tailing a
 *   multi-gigabyte log stays cheap
 * - A missing file yields an empty slice, not an error: a daemon that has
 *   not written output yet is a normal condition
 */
func Lines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	window := int64(maxTailBytes)
	if size < window {
		window = size
	}
	if _, err := f.Seek(size-window, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, window)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	buf = bytes.TrimRight(buf, "\n")
	if len(buf) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(buf), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

/**
 * CountErrorLines counts lines containing a known error keyword
 * @param {[]string} lines - Log tail to scan
 * @returns {int} Number of lines mentioning an error keyword
 * @description
 * - Matching is case-insensitive substring search
 * - Used by the daemon health heuristic over the stderr tail
 */
func CountErrorLines(lines []string) int {
	count := 0
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				count++
				break
			}
		}
	}
	return count
}

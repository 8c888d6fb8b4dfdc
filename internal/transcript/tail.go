package transcript

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

const tailChunkSize = 4096

// TailLines reads the last n lines of a file without loading the whole file.
func TailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	var collected []byte
	offset := size
	for offset > 0 {
		chunk := int64(tailChunkSize)
		if chunk > offset {
			chunk = offset
		}
		offset -= chunk

		buf := make([]byte, chunk)
		if _, err := file.ReadAt(buf, offset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read tail of %s: %w", path, err)
		}
		collected = append(buf, collected...)

		if bytes.Count(collected, []byte("\n")) > n {
			break
		}
	}

	text := strings.TrimRight(string(collected), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines, nil
}

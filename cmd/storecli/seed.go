package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gloudx/recordstore/recordstore"
)

// loadSeed populates store from a JSON Lines file, one record object per
// line.
func loadSeed(store *recordstore.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	var n, lineNo int
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return n, fmt.Errorf("seed: line %d: %w", lineNo, err)
		}
		if _, err := store.Create(data); err != nil {
			return n, fmt.Errorf("seed: line %d: %w", lineNo, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("seed: %w", err)
	}
	return n, nil
}

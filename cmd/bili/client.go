package main

import (
	"fmt"
	"os"
	"strings"

	bili "github.com/matcha-bili/bililive"
)

// loadClient reads a cookie token file (one raw cookie line per line, such
// as the Set-Cookie lines the login command writes) and wires it into a new
// authenticated Client.
func loadClient(path string) (*bili.Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	cred, jar, err := bili.FromRawCookies(lines)
	if err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return bili.NewClient(bili.WithCredential(cred, jar)), nil
}

// Package archive implements aoi.Archive on memory, a local directory and S3.
package archive

import (
	"fmt"
	"strings"
)

// checkKey rejects keys that could escape the archive root.
func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("archive key must not be empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("archive key %q must be relative", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid archive key %q", key)
		}
	}
	return nil
}

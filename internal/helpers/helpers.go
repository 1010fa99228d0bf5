// Package helpers holds small formatting utilities shared by the CLI.
package helpers

import (
	"fmt"
	"math"
)

// BytesToSize converts a byte count into a human-readable string (KB, MB,
// GB, ...), used by the usage command's tabular output.
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

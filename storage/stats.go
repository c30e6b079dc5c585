package storage

import (
	"fmt"
	"strings"
	"time"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByKind       map[string]int64 // object count per asset kind/scope prefix
}

// Summarize aggregates a listing.
func Summarize(objects []ObjectInfo) BucketStats {
	stats := BucketStats{ByKind: map[string]int64{}}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByKind[kindPrefix(obj.Key)]++
	}
	return stats
}

// kindPrefix returns "audio" for "audio:7" and "image:album" for "image:album:3".
func kindPrefix(key string) string {
	i := strings.LastIndex(key, ":")
	if i <= 0 {
		return "other"
	}
	return key[:i]
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

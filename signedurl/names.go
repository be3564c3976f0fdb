package signedurl

import (
	"fmt"
	"strings"
)

const (
	thumbnailPrefix = "thumbnail-"
	thumbnailExt    = ".jpg"
	tombstonePrefix = "deleted_"
)

// SplitName splits a filename at its last dot. A leading dot is part of the stem.
func SplitName(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// ThumbnailKey is where the thumbnail worker stores the preview of filename.
func ThumbnailKey(filename string) string {
	stem, _ := SplitName(filename)
	return thumbnailPrefix + stem + thumbnailExt
}

// TombstoneName is the name a deleted media is moved to. It embeds the media
// id so two deletions of the same filename never collide.
func TombstoneName(mediaID, filename string) string {
	return fmt.Sprintf("%s%s_%s", tombstonePrefix, mediaID, filename)
}

func IsTombstone(name string) bool {
	return strings.HasPrefix(name, tombstonePrefix)
}

func suffixed(stem, ext string, n int64) string {
	return fmt.Sprintf("%s-%d%s", stem, n, ext)
}

package archive

import (
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/fileutils"
)

// Fingerprint identifies an ordered set of filenames. Any addition, removal
// or rename yields a different value.
func Fingerprint(filenames []string) string {
	return fileutils.ComputeNamesHash(filenames)
}

func filenames(media []database.Media) []string {
	names := make([]string, 0, len(media))
	for _, m := range media {
		names = append(names, m.OriginalFilename)
	}
	return names
}

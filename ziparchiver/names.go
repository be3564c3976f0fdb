package ziparchiver

import (
	"fmt"
	"strings"

	"github.com/stupid-simple/foldershare/signedurl"
)

// ArchiveKey is the object key for an archive of folderName holding filenames.
// Folders sharing a name get distinct keys unless they hold the same files.
func ArchiveKey(folderName, fingerprint string) string {
	return fmt.Sprintf("zip_%s_%s.zip", sanitize(folderName), fingerprint)
}

func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	if strings.Trim(clean, "._") == "" {
		return "folder"
	}
	return clean
}

// entryNames hands out unique names for zip entries, suffixing repeats
// with _1, _2... before the extension.
type entryNames struct {
	used map[string]struct{}
}

func newEntryNames() *entryNames {
	return &entryNames{used: map[string]struct{}{}}
}

func (e *entryNames) next(name string) string {
	if _, ok := e.used[name]; !ok {
		e.used[name] = struct{}{}
		return name
	}

	stem, ext := signedurl.SplitName(name)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, counter, ext)
		if _, ok := e.used[candidate]; !ok {
			e.used[candidate] = struct{}{}
			return candidate
		}
	}
}

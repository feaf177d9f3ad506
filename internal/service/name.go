package service

import (
	"path"
	"strconv"
	"strings"
	"time"
)

var keyUnsafe = strings.NewReplacer("/", "_", "\\", "_")

// FileName builds the stored name {ownerId}_{category}_{unixMillis}{ext}. Path separators
// in any component are replaced so the name stays a single key segment.
func FileName(ownerID, category string, at time.Time, original string) string {
	var ext string
	if original != "" {
		ext = path.Ext(path.Base(strings.ReplaceAll(original, "\\", "/")))
	}
	return keyUnsafe.Replace(ownerID) + "_" +
		keyUnsafe.Replace(category) + "_" +
		strconv.FormatInt(at.UnixMilli(), 10) +
		ext
}

package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanFileName strips directory components and path separators from an uploaded file name
func CleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// LessonKey returns the object key of the original file of a lesson
func LessonKey(id int64, fileName string) string {
	return fmt.Sprintf("lessons/%d/%s", id, CleanFileName(fileName))
}

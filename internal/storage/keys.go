package storage

import (
	"fmt"
	"strings"
)

const keySeparator = ":"

func StoriesIndexKey() string {
	return "stories:index"
}

func StoryKey(storyID string) string {
	return fmt.Sprintf("stories:%s:story", storyID)
}

func PageKey(storyID string, pageNumber int) string {
	return fmt.Sprintf("stories:%s:pages:page%d", storyID, pageNumber)
}

func ProposalsKey(storyID string) string {
	return fmt.Sprintf("stories:%s:proposals", storyID)
}

// ValidateKey проверяет, что ключ можно безопасно отобразить в путь файловой системы:
// сегменты непустые, без разделителей путей и без "." / "..".
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("invalid storage key: empty")
	}
	for _, segment := range strings.Split(key, keySeparator) {
		switch {
		case segment == "", segment == ".", segment == "..":
			return fmt.Errorf("invalid storage key %q: bad segment %q", key, segment)
		case strings.ContainsAny(segment, "/\\\x00"):
			return fmt.Errorf("invalid storage key %q: segment %q contains a path separator", key, segment)
		}
	}
	return nil
}

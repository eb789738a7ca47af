package station

import (
	"encoding/json"
	"os"
	"sync"
)

// LocalAuthList is the set of idTags loaded from the template's
// authorizationFile, consulted by RemoteStartTransaction when both
// AuthorizeRemoteTxRequests and LocalAuthListEnabled apply. The dispatcher
// holds one pointer to a LocalAuthList for the station's whole lifetime;
// ReloadAuthList swaps its tags in place under mu so a cmd-level file
// watcher can refresh it without re-wiring the dispatcher.
type LocalAuthList struct {
	mu   sync.RWMutex
	tags map[string]bool
}

// LoadLocalAuthList reads a top-level JSON array of idTag strings from
// path. An empty path yields an empty list rather than an error, since
// authorizationFile is optional.
func LoadLocalAuthList(path string) (*LocalAuthList, error) {
	tags, err := readAuthListFile(path)
	if err != nil {
		return nil, err
	}
	return &LocalAuthList{tags: tags}, nil
}

// ReloadAuthList re-reads path and atomically replaces the list's tags.
// This is the entry point a cmd-level authorization-file watcher calls;
// the core itself never touches the filesystem.
func (l *LocalAuthList) ReloadAuthList(path string) error {
	tags, err := readAuthListFile(path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.tags = tags
	l.mu.Unlock()
	return nil
}

func readAuthListFile(path string) (map[string]bool, error) {
	tags := map[string]bool{}
	if path == "" {
		return tags, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var idTags []string
	if err := json.Unmarshal(data, &idTags); err != nil {
		return nil, err
	}
	for _, tag := range idTags {
		if tag != "" {
			tags[tag] = true
		}
	}
	return tags, nil
}

func (l *LocalAuthList) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tags)
}

func (l *LocalAuthList) Contains(idTag string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tags[idTag]
}

package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/cyberinferno/go-chat/safemap"
)

// roster is the local cache of who is in the chat, maintained from server
// notifications. It is read by the input goroutine (resolving @name to an id)
// and written by the receive goroutine, so both directions live in
// concurrency-safe containers.
type roster struct {
	ids   *cache.Cache                     // username -> uint32 id
	names *safemap.SafeMap[uint32, string] // id -> username
}

func newRoster() *roster {
	return &roster{
		ids:   cache.New(cache.NoExpiration, cache.NoExpiration),
		names: safemap.NewSafeMap[uint32, string](),
	}
}

func (r *roster) add(id uint32, username string) {
	r.ids.Set(username, id, cache.NoExpiration)
	r.names.Store(id, username)
}

func (r *roster) removeByID(id uint32) {
	if username, ok := r.names.Load(id); ok {
		r.ids.Delete(username)
	}
	r.names.Delete(id)
}

func (r *roster) idByName(username string) (uint32, bool) {
	v, ok := r.ids.Get(username)
	if !ok {
		return 0, false
	}

	return v.(uint32), true
}

// nameByID resolves a user id, falling back to "Unknown" for senders the
// roster has not heard about.
func (r *roster) nameByID(id uint32) string {
	if username, ok := r.names.Load(id); ok {
		return username
	}

	return "Unknown"
}

// mergeList folds a comma separated "username:id" roster payload into the
// cache, returning "username (id)" display strings for the valid entries.
// Malformed entries are skipped.
func (r *roster) mergeList(payload string) []string {
	var added []string
	for _, entry := range strings.Split(payload, ",") {
		if entry == "" {
			continue
		}
		sep := strings.LastIndex(entry, ":")
		if sep <= 0 {
			continue
		}
		id, err := strconv.ParseUint(entry[sep+1:], 10, 32)
		if err != nil {
			continue
		}
		username := entry[:sep]
		r.add(uint32(id), username)
		added = append(added, fmt.Sprintf("%s (%d)", username, id))
	}

	return added
}

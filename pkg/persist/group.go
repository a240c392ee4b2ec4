package persist

import (
	"os/user"
	"strconv"
)

// LookupGroup returns a GroupResolver that resolves name (e.g. "confd")
// via the system group database, the default production ents-getter.
func LookupGroup(name string) GroupResolver {
	return GroupResolverFunc(func() (int, error) {
		g, err := user.LookupGroup(name)
		if err != nil {
			return -1, err
		}
		return strconv.Atoi(g.Gid)
	})
}

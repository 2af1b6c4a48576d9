package subscription

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// ComputeViewID derives the optimistic-concurrency token for a bundle from
// its subscriptions' identities, versions and event ids. Any committed
// change to any subscription in the bundle yields a different token, so a
// repair prepared against a stale fetch is rejected instead of silently
// overwriting concurrent work.
//
// The digest is order-independent: storage order of subscriptions or events
// does not affect the token.
func ComputeViewID(subs []*Subscription) string {
	lines := make([]string, 0, len(subs))
	for _, s := range subs {
		ids := make([]string, 0, len(s.Events))
		for _, e := range s.Events {
			ids = append(ids, e.ID.String())
		}
		slices.Sort(ids)
		lines = append(lines, fmt.Sprintf("%s:%d:%s", s.ID, s.ActiveVersion, strings.Join(ids, ",")))
	}
	slices.Sort(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

package metric

import "strings"

// keySegments is the number of dot-separated segments mapped onto a Key.
const keySegments = 4

// Key is the structured form of a dotted statsd metric name,
// e.g. "api.http.users.create".
type Key struct {
	Namespace string
	Group     string
	Target    string
	Action    string
}

// ParseKey splits a dotted metric name into its positional fields.
// Segments beyond the fourth are ignored and missing segments are empty.
func ParseKey(name string) Key {
	parts := strings.SplitN(name, ".", keySegments+1)

	var segs [keySegments]string

	for i := 0; i < len(parts) && i < keySegments; i++ {
		segs[i] = parts[i]
	}

	return Key{
		Namespace: segs[0],
		Group:     segs[1],
		Target:    segs[2],
		Action:    segs[3],
	}
}

// Fields returns the key as document fields (ns, grp, tgt, act).
func (k Key) Fields() map[string]any {
	return map[string]any{
		"ns":  k.Namespace,
		"grp": k.Group,
		"tgt": k.Target,
		"act": k.Action,
	}
}

package config

import (
	"maps"
	"strings"
)

// sep joins nested JSON object names into a single CLI key.
const sep = "."

// secrets are the keys `config list` and `config get` never print in full.
var secrets = map[string]bool{
	"telegram.token": true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secrets[key]
}

// Flatten turns the decoded config file into key/value pairs addressed the
// way the config command takes them, e.g. "web.listen". Empty objects
// produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(path []string, node map[string]any)
	walk = func(path []string, node map[string]any) {
		for name, v := range node {
			key := append(path[:len(path):len(path)], name)
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[strings.Join(key, sep)] = v
		}
	}
	walk(nil, m)
	return out
}

// Unflatten rebuilds the nested document Flatten took apart. A scalar sitting
// where a key needs an object is replaced by one.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		setPath(out, strings.Split(key, sep), v)
	}
	return out
}

func setPath(root map[string]any, path []string, v any) {
	node := root
	for _, name := range path[:len(path)-1] {
		child, ok := node[name].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[name] = child
		}
		node = child
	}
	node[path[len(path)-1]] = v
}

// MaskSecrets copies flat with every secret value passed through MaskValue.
func MaskSecrets(flat map[string]any) map[string]any {
	out := maps.Clone(flat)
	if out == nil {
		out = make(map[string]any)
	}
	for key, v := range out {
		out[key] = MaskValue(key, v)
	}
	return out
}

// MaskValue hides all but the tail of a non-empty secret string: a bot token
// "123:ABCDEF" prints as "***CDEF". Other keys and values pass through.
func MaskValue(key string, v any) any {
	s, ok := v.(string)
	if !secrets[key] || !ok || s == "" {
		return v
	}
	return "***" + s[max(0, len(s)-4):]
}

package driven

// ConfigStore holds user settings as flat dot-notation keys
// ("search.max_matches") with loosely typed values. Coercing a value into
// the settings struct is the caller's job; stores only keep what they read.
type ConfigStore interface {
	Get(key string) (any, bool)

	// Set stores value under key and persists it before returning.
	Set(key string, value any) error

	// Keys lists stored keys in sorted order.
	Keys() []string

	// Path names the backing file, or a placeholder for stores without one.
	Path() string
}

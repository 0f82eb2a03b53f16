package analogy

import "fmt"

// ConfigError reports an invalid mapper setting. It is returned before any
// rule is examined.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

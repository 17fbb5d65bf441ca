package shared

import "fmt"

// SequenceLockKey builds redis keys guarding sequence counter seeding.
func SequenceLockKey(scope string) string {
	return fmt.Sprintf("seq:%s:lock", scope)
}

// Package settings holds the process-wide persisted key-value state shared by
// the coordinator, trigger surfaces, and page agents. The store is eventually
// consistent: there is no transactional guarantee across keys and concurrent
// writers resolve last-write-wins per key.
package settings

import "context"

// Persisted keys. The schema is flat and unversioned.
const (
	KeyAPIKey         = "apiKey"
	KeyTargetLanguage = "targetLanguage"
	KeyPromptTemplate = "promptTemplate"
	KeyDisplayMode    = "displayMode"
	KeyTextDirection  = "textDirection"
)

// PreferenceKeys lists every preference field, excluding the credential.
func PreferenceKeys() []string {
	return []string{
		KeyTargetLanguage,
		KeyPromptTemplate,
		KeyDisplayMode,
		KeyTextDirection,
	}
}

// Values is a partial record. Absent keys are simply missing from the map;
// readers resolve defaults themselves.
type Values map[string]string

// Store is the asynchronous key-value contract consumed by the core. Both
// operations may suspend; neither is atomic across multiple keys.
type Store interface {
	Get(ctx context.Context, keys ...string) (Values, error)
	Set(ctx context.Context, values Values) error
}

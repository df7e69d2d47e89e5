// Package memory provides in-process implementations of the account, session and audit
// repositories. They are used when no DATABASE_URL is configured and by tests. Stored
// values are copied on the way in and out so callers never share state with the store.
package memory

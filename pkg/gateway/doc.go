/*
Package gateway executes authenticated requests against the remote
VitalSync API, hiding the token lifecycle from callers.

Callers hand the Client a request and get a decoded response or a typed
error. Token attachment, refresh-on-401, retry, and session teardown all
happen inside. The token pair is the only shared mutable state in the
sync core and every access to it is linearized through one mutex.

# Request Flow

	 Do(request)
	     │
	     ▼
	 attach current access token ── issue request
	     │
	     ├── 2xx ──────────────► decode, return
	     │
	     ├── 401 ──► refresh (single-flight)
	     │               │
	     │               ├── success ──► retry original ONCE
	     │               │                   │
	     │               │                   ├── 2xx ► return
	     │               │                   └── 401 ► session invalid
	     │               │
	     │               └── refresh got 401 ──► session invalid:
	     │                     clear stored tokens, fire logout
	     │                     sink, return ErrSessionInvalid
	     │
	     ├── 429 / 5xx ─► transient error (drainer retries)
	     └── other 4xx ─► permanent error with status + body

# Single-Flight Refresh

N concurrent requests that each hit a 401 must produce exactly one call
to the refresh endpoint. The client tags every issued request with the
token generation it used. A 401 handler locks the refresh mutex and
compares generations: if another caller already refreshed while it
waited, it skips the refresh and retries with the newer token. The mutex
is held across the refresh HTTP call itself, so a second refresh can
never start while one is in flight.

The retry budget is exactly one retry-after-refresh per original
request. The client never loops.

# Session Teardown

A 401 from the refresh endpoint means the refresh token itself is
revoked or expired. The client clears the in-memory pair, wipes the
persisted session through the TokenStore, and invokes the SessionSink
once, which the agent turns into a process-wide session.expired event.
Subsequent requests fail fast with ErrSessionInvalid until new tokens
are stored.

# Token Persistence

TokenStore abstracts secure storage. FileTokenStore keeps the pair in a
0600 JSON file under the data directory, written atomically via a temp
file and rename. MemoryTokenStore backs tests.

# Wire Surface

	POST   /v1/entries            create, returns backend-assigned ID
	PATCH  /v1/entries/{id}       update by remote ID
	DELETE /v1/entries/{id}       delete by remote ID
	POST   /v1/auth/refresh       exchange refresh token for new pair

# See Also

  - pkg/drainer for retry and backoff on transient errors
  - pkg/types for the error taxonomy
*/
package gateway

// Package fetch implements the fetch engine: a bounded pool of workers that
// drives every worklist target through a retry state machine until it has a
// terminal outcome.
//
// Each target goes through these phases, stopping at the first success:
//
//  1. Direct attempts against the origin, up to retries+1 of them, with a
//     linear backoff between attempts. A 4xx response ends this phase
//     immediately. The first TLS failure may trigger one fallback attempt
//     over an insecure client or the plaintext variant of the URL.
//  2. One attempt against the archive location returned by the configured
//     resolver, unless the origin answered with a 4xx.
//  3. One attempt through the alternate transport, when one is configured.
//
// The engine never writes files. Successful results carry the response body
// so the caller can persist it without fetching it again.
package fetch

// Package authflow provides a local authentication core: a single-flight
// state machine that reconciles asynchronous identity-provider results,
// persists a resumable session, and exposes a race-free, observable
// current-user value to consumers.
//
// State machine:
//   - AuthState is the single source of truth for "who is logged in". It is
//     owned exclusively by a Machine, which serializes every command (login,
//     signup, federated login, logout) through a single run loop. Provider
//     calls run off-loop; each result carries the RequestID that minted it
//     and stale completions are silently discarded, so a slow superseded
//     response can never clobber a newer one or resurrect a logged-out
//     session.
//   - On startup the machine initializes from the SessionStore without any
//     network access, so a persisted session survives process restarts.
//
// Providers:
//   - Provider is the uniform adapter boundary over external identity
//     services. provider/local implements email/password against a Bun-backed
//     user table, provider/google verifies Google-issued ID tokens against
//     Google's JWK set, and MultiProvider composes a password provider with a
//     federated one.
//
// Observation:
//   - Publisher fans out every applied transition in order. Each subscriber
//     immediately receives the latest AuthState and then every subsequent
//     change, so UIs and background consumers share one update path.
package authflow

// Package ycm implements an editor-side client for a local ycmd-style
// code-completion daemon.
//
// The package launches the daemon as a subprocess, provisions a per-session
// shared secret through the daemon's options file, authenticates every
// request with an HMAC-SHA256 signature header, and translates JSON
// responses into completion candidates.
//
// Architecture:
//
//   - SecretStore generates and holds the session secret.
//   - SignHMACSHA256 computes signatures over request bodies.
//   - ServerProcess manages the daemon subprocess and discovers its
//     listening port from emitted output.
//   - Session composes the three into a signed HTTP request/response
//     layer with an explicit Stopped/Starting/Running lifecycle.
//   - CompletionClient builds request documents from editor state and
//     parses completion candidates.
//   - ParseNotifier emits idle-triggered FileReadyToParse events.
//
// The editor's buffer model, idle timer, and candidate UI are external
// collaborators consumed through the Editor and IdleScheduler interfaces.
package ycm

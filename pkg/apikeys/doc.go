// Package apikeys manages programmatic access keys for the console.
//
// A key is presented as an opaque secret "afk_<base64url>" and stored only
// as a bcrypt hash; lookup is a linear scan comparing the candidate against
// every unexpired hash. Two store backends exist: an in-memory read-write
// store for self-service key management, and a read-only file store for
// deployments that provision keys out of band. The file store watches its
// source with fsnotify and swaps complete snapshots atomically, so a
// malformed edit never takes down the working set.
package apikeys

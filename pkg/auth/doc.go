// Package auth resolves request identity for the console.
//
// Resolution is ordered and first-match-wins: a presented API key, then
// the deployment's anonymous mode, then proxy headers or the browser
// session depending on the configured mode. Resolution never fails; a
// request that matches nothing becomes an anonymous identity so that
// downstream authorization, not authentication, decides what it may do.
package auth

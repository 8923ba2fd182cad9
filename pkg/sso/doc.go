// Package sso implements the console's OIDC login integration.
//
// Identity is established through the authorization-code flow with PKCE.
// Provider endpoints come from OIDC discovery against the configured
// issuer; providers without discovery support can be configured with
// explicit authorization, token, and userinfo endpoints. A provider with
// neither is rejected.
//
// Claim names are configurable and support dotted paths into nested claim
// objects; group claims accept both JSON arrays and comma-separated
// strings.
package sso

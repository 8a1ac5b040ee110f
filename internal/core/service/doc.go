// Package service provides the session-token lifecycle for the MBaaS client.
//
// AuthSession owns the single locally stored session token. It persists the
// token through a TokenStore and checks or revokes it with the backend
// through a Transport:
//
//   - Exists / Token: inspect the cached token (no I/O)
//   - Save: persist a newly issued token
//   - Verify: ask the backend whether the token is still valid
//   - Clear: revoke the token remotely, then forget it locally
//
// Verify and Clear also come in channel (VerifyAsync, ClearAsync) and
// callback (VerifyWithCallback, ClearWithCallback) forms.
package service

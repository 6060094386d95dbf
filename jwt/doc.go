// Package jwt signs and verifies password-reset tokens using configured signing keys
// and strict validation semantics (pinned algorithm, optional kid set, issuer, audience).
package jwt

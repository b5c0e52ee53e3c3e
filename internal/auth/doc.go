// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

// Package auth provides credential hashing, bearer token issuance and
// validation, and resolution of a token into an authenticated session.
//
// # Services
//
//   - Service - registration, login, and password-changing user updates
//   - SessionResolver - turns a bearer token into a Session
//   - TokenService - signs and verifies JWT access tokens
//
// Every authentication failure surfaces as an error wrapping ErrUnauthorized.
// The reason is logged, never returned, so callers cannot distinguish an
// unknown user from a wrong password or a forged token from an expired one.
package auth

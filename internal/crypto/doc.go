// Package crypto provides passcode hashing for notelock.
//
// Offline passcodes are never stored. Instead the keyring holds an encoded
// PBKDF2-HMAC-SHA256 hash:
//
//	pbkdf2-sha256$<iterations>$<base64 salt>$<base64 key>
//
// with a 16-byte random salt and 210,000 iterations (OWASP minimum).
//
// Memory safety:
//   - Use ClearBytes() to zero passcodes and derived keys after use
package crypto

// Package auth issues and verifies the HMAC-signed bearer tokens that
// identify the user behind each API request.
package auth

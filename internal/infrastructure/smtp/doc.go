// Package smtp delivers verification codes by mail through gomail.
package smtp

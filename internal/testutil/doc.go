// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing envelopes and observing channel
// traffic. They are not intended for production usage.
package testutil

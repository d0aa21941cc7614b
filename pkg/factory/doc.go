// Package factory is the HTTP client for the pizza factory, the external
// service that bakes an order and returns a signed verification token.
package factory

// Package memory is an in-process storage backend implementing every
// repository the service needs. Data is lost on restart. The service uses it
// when the database URL is "memory", and the handler tests run against it.
package memory

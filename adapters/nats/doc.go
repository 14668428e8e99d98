// Package nats stores actor logs in a JetStream stream and actor storage in
// a JetStream key-value bucket.
package nats

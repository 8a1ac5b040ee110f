// Package storage provides durable local persistence for the MBaaS client.
//
// Values live in an embedded Badger database, either on disk (the default,
// so a session survives process restarts) or purely in memory. A SealedStore
// can wrap any Store to encrypt values at rest with a passphrase-derived key.
package storage

package storage

// Default picks the adapter a store uses when none is configured: the durable key-value
// store if it accepts a probe write, then the session store, then memory. Nil stores are
// skipped.
func Default(local, session KeyValueStore, key string) *Adapter {
	if local != nil && Probe(local) == nil {
		return Sync(NewLocalStorage(local, key))
	}
	if session != nil && Probe(session) == nil {
		return Sync(NewSessionStorage(session, key))
	}
	return Sync(NewMemory())
}

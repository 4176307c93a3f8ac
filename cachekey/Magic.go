package cachekey

// Magic is the 6-byte sentinel at the start of both the index file and the
// cache file, used to validate that a reopened file holds a valid cache.
const Magic = "PIXELS"

// MagicSize is len(Magic).
const MagicSize = 6

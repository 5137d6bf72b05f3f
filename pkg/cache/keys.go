package cache

import "fmt"

const (
	// Delimiter joins the key segments. Segments must not contain it,
	// otherwise distinct triples can map to the same key.
	Delimiter = ":"

	keyFmt     = "%s:%s:%s"
	patternFmt = "%s:%s:*"
)

// Namespace identifies the tenant or application owning a set of keys.
type Namespace string

// Prefix identifies an entity category, much like a table name.
type Prefix string

// ID identifies one entity within a namespace and prefix.
type ID string

// Key composes the fully-qualified store key "namespace:prefix:id".
func Key(ns Namespace, prefix Prefix, id ID) string {
	return fmt.Sprintf(keyFmt, ns, prefix, id)
}

// Pattern is the glob matching every key of prefix within ns.
func Pattern(ns Namespace, prefix Prefix) string {
	return fmt.Sprintf(patternFmt, ns, prefix)
}

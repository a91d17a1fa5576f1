package store

import "strings"

// Key layout. goleveldb keeps keys in sorted order, so every prefix
// below supports an efficient range scan via util.BytesPrefix — the
// mechanism ListRelations, LoadRows, and BulkReplace all lean on.
const (
	relPrefix  = "m:rel:"  // m:rel:<name>            -> encoded header
	consPrefix = "m:con:"  // m:con:<name>:<cname>    -> predicate source
	keyPrefix  = "m:key:"  // m:key:<name>            -> encoded key attrs
	dataPrefix = "d:"      // d:<name>:<rid>          -> encoded row
	sep        = ":"
)

func relMetaKey(name string) []byte {
	return []byte(relPrefix + name)
}

func constraintPrefix(name string) []byte {
	return []byte(consPrefix + name + sep)
}

func constraintKey(name, cname string) []byte {
	return []byte(consPrefix + name + sep + cname)
}

func constraintNameFromKey(name string, key []byte) string {
	return strings.TrimPrefix(string(key), consPrefix+name+sep)
}

func keyMetaKey(name string) []byte {
	return []byte(keyPrefix + name)
}

func dataPrefixFor(name string) []byte {
	return []byte(dataPrefix + name + sep)
}

func dataKey(name, rid string) []byte {
	return []byte(dataPrefix + name + sep + rid)
}

func ridFromDataKey(name string, key []byte) string {
	return strings.TrimPrefix(string(key), dataPrefix+name+sep)
}

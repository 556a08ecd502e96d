// Package strata provides a concurrent, hierarchical configuration
// store. Values from TOML, YAML and JSON files, environment variables
// and pluggable background providers merge into one dotted-path key
// space with per-key provenance tracking.
//
// The store is an ordered map: keys of equal length sort byte-wise and
// keys of different lengths sort naturally ("file2" before "file10"),
// which keeps the descendants of any prefix contiguous and makes
// prefix scans cheap. Values are a closed tagged union (Value) so a
// stored tree can be reconstructed, decoded into structs, or diffed
// structurally.
//
// Writes run a secret-resolution pipeline before the value becomes
// visible: a map carrying the reserved ".c5encval" field, a three
// element array of [algorithm, key name, base64 ciphertext], is
// decrypted in place and replaced with its plaintext, or with Null on
// any failure. No raw marker is ever observable through the read API
// and a bad secret never panics.
//
// Subscribers register on any path and receive debounced notifications:
// rapid writes to one leaf within the window coalesce into a single
// callback carrying the value current at flush time, delivered for the
// leaf and every dot-delimited ancestor.
//
// Value providers hydrate keys asynchronously, once at registration
// and optionally on a fixed period, through a bounded worker pool.
//
// Quick start:
//
//	store, err := strata.NewBuilder().
//		WithSecretKeyDir("/etc/myapp/keys").
//		WithFile("/etc/myapp/config.toml").
//		WithOptionalFile("config.local.toml").
//		WithEnvPrefix("MYAPP_").
//		WithWatch().
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	host, _ := store.String("server.host")
//	db := store.Branch("database")
//	port, _ := db.Int64("port")
//
//	store.Subscribe("server", func(notifyPath, changedPath string, v strata.Value) {
//		// fires once per debounce window per changed leaf under "server"
//	})
//
// All operations are safe for concurrent use. Each store owns its own
// notification worker and provider scheduler; multiple independent
// stores can coexist in one process. Close releases both.
package strata

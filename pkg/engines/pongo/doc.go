// Package pongo provides a Django-syntax engine.Instance backed by pongo2.
//
// Imports are exposed as callable context values, so a helper registered as
// "upper" is invoked as {{ upper(name) }}. Templates can include files from
// the fs.FS configured with WithFS.
package pongo

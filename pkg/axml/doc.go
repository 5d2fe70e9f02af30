// Package axml reads and patches compiled Android binary XML, the format of
// AndroidManifest.xml inside an APK.
//
// Only the pieces needed to change an app's identity are modelled: the string
// pool, the resource map and start-element attributes. Existing pool strings
// are kept as their original encoded records so untouched documents
// re-serialize byte for byte; new values are appended to the pool and
// attributes are repointed at them.
package axml

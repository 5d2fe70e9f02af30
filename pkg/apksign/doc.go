// Package apksign signs APK archives with the JAR (v1) scheme and APK
// Signature Scheme v2, and reads those signatures back.
//
// Signing copies every entry of the unsigned archive raw, so local headers,
// alignment padding and compressed data are preserved. The v1 files are
// appended under META-INF/, then the v2 signing block is inserted in front of
// the central directory.
package apksign

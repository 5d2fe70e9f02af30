// Package apkbuilder turns a template APK plus a BuildConfig into a new,
// signed APK with its own identity and content.
//
// A build streams the template entry by entry through an ordered rule chain
// (see rules.go). The manifest and resource table are binary-patched, launcher
// icons are regenerated, the shell configuration is rewritten, and media
// payloads are appended. The unsigned result is handed to a Signer and the
// signed archive is checked before it is reported.
//
// The template is only ever read. Every build works in its own directory under
// Builder.WorkDir, which is removed when the build returns.
package apkbuilder

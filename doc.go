// Package main provides the web-to-app CLI, which clones a template APK into
// a new, independently installable app.
//
// For the library API, see the apkbuilder subpackage:
//
//	import "github.com/yingcaihuang/web-to-app/pkg/apkbuilder"
//
// # Installation
//
//	go install github.com/yingcaihuang/web-to-app@latest
package main

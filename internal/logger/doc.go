// Package logger wraps zap with the small surface the builder needs:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing,
//   - a per-build log file that mirrors everything logged during one build.
//
// Packages take a context and pull the logger from it, so a build's file sink
// follows the call chain without being passed around explicitly.
package logger

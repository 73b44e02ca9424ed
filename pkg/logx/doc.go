// Package logx is housebot's structured logging layer.
//
// It wraps zerolog behind a small value type (Logger) so components can carry
// fixed fields (comp=..., job=...) and keep logging through config reloads:
//   - console output with a short timestamp and file:line caller
//   - optional JSON file sink
//   - optional chat sink for warnings and errors, rate limited
package logx

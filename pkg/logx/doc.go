// Package logx is the structured logger used across stretchbot.
//
// It is a thin layer over zerolog:
//   - Console output stays human readable (short timestamp, file:line caller)
//   - File output is JSON lines
//   - Service.Apply swaps sinks and level at runtime (config hot reload)
package logx

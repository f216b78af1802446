// Package ir provides the intermediate representation shared by every other
// internal package: model schemas compiled from CUE and the constrained value
// types stored in record attributes.
//
// ir imports nothing internal. The schema compiler produces ir.ModelSpec
// values, the record store consumes them, and the engine and journal speak
// in ir.IRValue.
//
// Key design constraints:
//   - NO float types anywhere - attribute numbers are int64
//   - Object keys are ordered by UTF-16 code units (RFC 8785) wherever order
//     is observable
//   - All JSON tags use snake_case
package ir

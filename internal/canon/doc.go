// Package canon provides the canonical value model and codec for tally.
//
// This package contains the value union, encoder, decoder, and content
// hashing only. All other internal packages import canon; canon imports
// nothing internal. This keeps the codec the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - numbers are exact decimals
//   - Object keys are sorted bytewise at construction, never at iteration
//   - All wire field names use snake_case
//   - Encoding is total: unsupported shapes return EncodeError, never panic
package canon

// Package phone turns user-entered phone text into the canonical identifier
// used as the only key for phone comparisons.
//
// # Design
//
// A raw value may carry several candidates separated by ',' or ';'. Each
// candidate is reduced to digits plus an optional leading '+', stripped of
// leading zeros, and handed to the libphonenumber port. The first candidate
// that maps to a known region wins. By default the cleaned string itself is
// returned, not the parser's reformatted rendering.
//
// # What this package must NOT do
//
//   - Perform I/O or keep mutable state after construction.
//   - Import goPhoneAuth or any internal package.
package phone

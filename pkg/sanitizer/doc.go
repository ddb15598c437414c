// Package sanitizer normalizes free-text booking input before validation and
// storage.
//
// All functions are idempotent and never return errors: input that cannot be
// normalized comes back empty so the validators reject it.
//
// Normalization includes:
//   - Mobile numbers: E.164 via libphonenumber, using the service region for national formats
//   - Names and cities: collapse whitespace, trim
//   - Date codes: trim, drop empties and duplicates, sort
//   - URLs: force https, lowercase host, keep path case
//   - Limits: clamp to the accepted range
package sanitizer

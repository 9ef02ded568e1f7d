// Package conv provides checked integer conversions for sizes derived from
// dataset headers and extents.
//
// Header fields come from storage and extents from callers; both are
// converted here before they size a buffer or address a blob.
package conv

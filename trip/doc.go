// Package trip defines the request parameters that determine a packing
// suggestion set, along with their validation and canonical form.
package trip

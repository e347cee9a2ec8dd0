// Package linkable provides the stock linkable objects: typed leaf
// variables and the ordered HashMap composite, plus the type registry used
// to rebuild composites from their session state.
package linkable

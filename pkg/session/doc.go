/*
Package session implements the ownership and notification graph of linkable
objects.

A Manager tracks which objects are registered under which parents, which
single owner is responsible for disposing each child, and which callback
collection belongs to each object. Changes to a child trigger its parents'
callbacks, and disposing an owner disposes everything it owns.

Managers are explicit values: independent graphs can coexist in one process.
All methods must be called from the goroutine that ticks the manager's stage.
*/
package session

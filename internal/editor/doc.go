// Package editor keeps a single note bound to an editing session.
//
// An Editor holds one note (or an unsaved placeholder) and subscribes to the
// data layer's note stream. Whenever a streamed batch contains the bound
// note, the editor swaps in the new value and tells its value observers,
// passing along the PayloadSource so they can tell local edits from sync.
// Note change observers fire only when the editor switches to a different
// note.
package editor

// Package items defines notelock's data model.
//
// Notes and tags share one Item type distinguished by ContentType. A tag
// groups notes by holding references to them. Every change delivered by the
// data layer carries a PayloadSource describing where it came from:
//   - SourceLocalRetrieved: initial load
//   - SourceLocalChanged: edit on this device
//   - SourceRemoteRetrieved: sync from elsewhere
package items

// Package photomap organizes large geotagged photo collections.
//
// It extracts GPS coordinates and capture timestamps from EXIF metadata,
// reverse-geocodes coordinates into country/city names (rate-limited and
// session-deduped), maintains an incremental two-tier cache of the
// derived data, groups photos by folder and time, and clusters them
// geographically for map-based browsing.
//
// A [Session] carries the explicit state (photo root, cluster distance,
// resolver) and exposes the synchronous operations a presentation layer
// consumes: ScanFolder, Dataset, RebuildDataset, ForceInvalidate, Groups
// and Clusters. The presentation layer itself (map rendering, previews,
// dialogs) is an external collaborator and not part of this module.
package photomap

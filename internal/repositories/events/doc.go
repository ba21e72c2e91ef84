// Package events stores calendar events. Title, description and recurrence
// rule are encrypted; start and end times stay in clear so date range
// queries run on the start_time index.
//
// Create, Update and Delete raise a coalescing "events updated" signal; the
// shell's calendar view subscribes to it and reloads on the next listing.
// Bulk raw writes leave signalling to the caller, after its transaction
// commits.
package events

// Package speaker defines the records that flow through the outreach pipeline:
// the raw Speaker, its ClassificationResult and EmailContent, and the merged
// ProcessedSpeaker handed to export.
//
// Category and CompanySize are closed enumerations. Callers that branch on them
// should use an exhaustive switch so a new member surfaces every decision point.
package speaker

package version

// Current is the release version of the outreach binary.
const Current = "0.1.0"

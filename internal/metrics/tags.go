package metrics

// Tag formats a StatsD tag as "key:value".
func Tag(key, value string) string {
	return key + ":" + value
}

func TierTag(tier string) string {
	return Tag("tier", tier)
}

func SegmentTag(segment string) string {
	return Tag("segment", segment)
}

func EndpointTag(endpoint string) string {
	return Tag("endpoint", endpoint)
}

// StatusTag tags a cache lookup outcome or an HTTP status class.
func StatusTag(status string) string {
	return Tag("status", status)
}

func ComponentTag(component string) string {
	return Tag("component", component)
}

func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
